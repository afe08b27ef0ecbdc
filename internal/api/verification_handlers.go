package api

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	database "github.com/portfoliopilot/backend/internal"
	"github.com/portfoliopilot/backend/internal/eventbus"
)

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// bus carries verification lifecycle events; local in-process by default,
// swapped for NATS in main when configured. Publishing is best-effort.
var bus eventbus.Bus = eventbus.NewLocalBus()

// SetEventBus replaces the lifecycle event bus (called from main).
func SetEventBus(b eventbus.Bus) {
	if b != nil {
		bus = b
	}
}

func publishVerificationEvent(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := bus.Publish(context.Background(), eventbus.Event{Topic: topic, Payload: data}); err != nil {
		logger.WithField("topic", topic).Warn("event publish failed: ", err)
	}
}

// publicBaseURL is the address embedded into verify links. Falls back to the
// inbound request's origin, which usually points at the API host rather than
// the frontend.
func publicBaseURL(c *gin.Context, requestID string) string {
	if base := strings.TrimRight(strings.TrimSpace(os.Getenv("PILOT_PUBLIC_URL")), "/"); base != "" {
		return base
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	logEvent("public_url_not_configured", requestID).
		Warn("PILOT_PUBLIC_URL not set: verification link may point to API host")
	return scheme + "://" + c.Request.Host
}

// CreateVerificationRequest issues a new capability token for one achievement
// and mails the verify link to the chosen verifier.
// POST /verification/request
func CreateVerificationRequest(c *gin.Context) {
	requestID := RequestID(c)
	userID := c.GetString("userID")

	var body struct {
		AchievementID    string `json:"achievementId"`
		VerifierEmail    string `json:"verifierEmail"`
		VerificationLink string `json:"verificationLink"`
		Message          string `json:"message"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.AchievementID == "" ||
		!emailShape.MatchString(body.VerifierEmail) {
		Failure(c, 400, CodeValidationError, "achievementId and valid verifierEmail are required", nil)
		return
	}

	// Ownership check doubles as the existence check so callers cannot probe
	// for foreign achievement ids.
	var owner uuid.UUID
	err := database.DB.Get(&owner, `SELECT user_id FROM achievements WHERE id=$1`, body.AchievementID)
	if err != nil || owner.String() != userID {
		Failure(c, 404, CodeNotFound, "Achievement not found or not yours", nil)
		return
	}

	token := uuid.NewString()
	verifierEmail := strings.ToLower(strings.TrimSpace(body.VerifierEmail))
	var message *string
	if body.Message != "" {
		message = &body.Message
	}

	_, err = database.DB.Exec(`
		INSERT INTO verification_requests (id, achievement_id, student_id, verifier_email, message, status, token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), body.AchievementID, userID, verifierEmail, message, database.VerificationPending, token, time.Now())
	if err != nil {
		logEvent("verification_request_insert_failed", requestID).
			WithField("achievement_id", body.AchievementID).Error(err)
		Failure(c, 500, "VERIFICATION_REQUEST_CREATE_FAILED", "Failed to create verification request", nil)
		return
	}

	// Best-effort stamp of the achievement's external evidence link; the
	// request above is already durable, so a failure here only gets logged.
	if link := strings.TrimSpace(body.VerificationLink); link != "" {
		if _, err := database.DB.Exec(
			`UPDATE achievements SET verification_link=$1 WHERE id=$2`, link, body.AchievementID); err != nil {
			logEvent("verification_link_stamp_failed", requestID).
				WithField("achievement_id", body.AchievementID).Warn(err)
		}
	}

	verifyURL := publicBaseURL(c, requestID) + "/verify/" + token

	emailSent, emailErr := sendVerificationEmail(strings.TrimSpace(body.VerifierEmail), verifyURL)
	if !emailSent {
		logEvent("verification_request_email_send_failed", requestID).
			WithFields(logrus.Fields{"verifier_email": verifierEmail, "reason": emailErr}).
			Warn("verification email not delivered")
	}

	RecordVerificationOutcome("created")
	publishVerificationEvent(eventbus.TopicVerificationRequested, gin.H{
		"achievement_id": body.AchievementID,
		"student_id":     userID,
		"verifier_email": verifierEmail,
	})

	extras := gin.H{"verifyUrl": verifyURL, "emailSent": emailSent, "emailError": nil}
	if emailErr != "" {
		extras["emailError"] = emailErr
	}
	Success(c, 200, nil, extras)
}

// RespondVerification consumes a capability token: exactly one approve or
// reject per token, bound to the mailbox the link was sent to.
// POST /verification/respond
func RespondVerification(c *gin.Context) {
	requestID := RequestID(c)

	var body struct {
		Token   string `json:"token"`
		Action  string `json:"action"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Token == "" ||
		(body.Action != "approve" && body.Action != "reject") {
		Failure(c, 400, CodeValidationError, "token and action (approve|reject) required", nil)
		return
	}

	var req database.VerificationRequest
	err := database.DB.Get(&req, `
		SELECT id, achievement_id, verifier_email, verifier_id, status
		FROM verification_requests WHERE token=$1`, body.Token)
	if err != nil {
		Failure(c, 404, CodeNotFound, "Link not found", nil)
		return
	}
	if req.Status != database.VerificationPending {
		Failure(c, 410, CodeLinkUsed, "Link already used", gin.H{"status": req.Status})
		return
	}

	// The token alone is not enough: the responder must be signed in with the
	// mailbox the link was addressed to.
	userEmail := strings.ToLower(c.GetString("userEmail"))
	if userEmail != strings.ToLower(req.VerifierEmail) {
		Failure(c, 403, CodeForbidden,
			"This link was sent to a different email. Sign in with the email that received the verification request.", nil)
		return
	}

	// First responder claims the verifier role; both writes are best-effort
	// and never block the decision itself.
	userID := c.GetString("userID")
	if req.VerifierID == nil {
		if _, err := database.DB.Exec(
			`UPDATE verification_requests SET verifier_id=$1 WHERE id=$2 AND verifier_id IS NULL`,
			userID, req.ID); err != nil {
			logEvent("verifier_binding_failed", requestID).WithField("request_id_db", req.ID).Warn(err)
		}
		if _, err := database.DB.Exec(
			`UPDATE profiles SET role='verifier' WHERE id=$1`, userID); err != nil {
			logEvent("verifier_role_upgrade_failed", requestID).WithField("user_id", userID).Warn(err)
		}
	}

	newStatus := database.VerificationApproved
	if body.Action == "reject" {
		newStatus = database.VerificationRejected
	}
	var comment *string
	if body.Comment != "" {
		comment = &body.Comment
	}

	// Conditional transition: only the still-pending row can move. Losing a
	// race here is indistinguishable from arriving late.
	res, err := database.DB.Exec(`
		UPDATE verification_requests SET status=$1, verifier_comment=$2
		WHERE id=$3 AND status=$4`,
		newStatus, comment, req.ID, database.VerificationPending)
	if err != nil {
		logEvent("verification_respond_update_failed", requestID).WithField("token", body.Token).Error(err)
		Failure(c, 500, "VERIFICATION_SUBMIT_FAILED", "Failed to submit", nil)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		Failure(c, 410, CodeLinkUsed, "Link already used", gin.H{"status": newStatus})
		return
	}

	// Reflect the decision on the achievement so profile stats see it.
	achievementStatus := "verified"
	if newStatus == database.VerificationRejected {
		achievementStatus = "rejected"
	}
	if _, err := database.DB.Exec(
		`UPDATE achievements SET verification_status=$1 WHERE id=$2`,
		achievementStatus, req.AchievementID); err != nil {
		logEvent("achievement_status_stamp_failed", requestID).
			WithField("achievement_id", req.AchievementID).Warn(err)
	}

	RecordVerificationOutcome(newStatus)
	publishVerificationEvent(eventbus.TopicVerificationResponded, gin.H{
		"achievement_id": req.AchievementID,
		"verifier_id":    userID,
		"status":         newStatus,
	})

	Success(c, 200, nil, gin.H{"status": newStatus})
}

// ViewVerificationRequest is the unauthenticated preview behind the emailed
// link: anyone holding a still-pending token sees a redacted summary before
// signing in.
// GET /verification/verify?token=
func ViewVerificationRequest(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		Failure(c, 400, CodeValidationError, "Token required", nil)
		return
	}

	var req database.VerificationRequest
	err := database.DB.Get(&req, `
		SELECT id, achievement_id, student_id, verifier_email, status, created_at
		FROM verification_requests WHERE token=$1`, token)
	if err != nil {
		Failure(c, 404, CodeNotFound, "Link not found", nil)
		return
	}
	if req.Status != database.VerificationPending {
		Failure(c, 410, CodeLinkUsed, "Link already used", gin.H{"status": req.Status})
		return
	}

	var a database.Achievement
	err = database.DB.Get(&a, `
		SELECT id, title, description, date, verification_link, file_url, category, type
		FROM achievements WHERE id=$1`, req.AchievementID)
	if err != nil {
		Failure(c, 404, CodeNotFound, "Achievement not found", nil)
		return
	}

	studentName := "Student"
	var name string
	if err := database.DB.Get(&name,
		`SELECT name FROM profiles WHERE id=$1`, req.StudentID); err == nil && name != "" {
		studentName = name
	}

	// Redacted view: owner id and internal timestamps stay server-side.
	Success(c, 200, gin.H{
		"request": gin.H{
			"id":             req.ID,
			"verifier_email": req.VerifierEmail,
			"status":         req.Status,
		},
		"achievement": gin.H{
			"title":             a.Title,
			"description":       a.Description,
			"date":              a.Date,
			"verification_link": a.VerificationLink,
			"file_url":          a.FileURL,
			"category":          a.Category,
			"type":              a.Type,
		},
		"studentName": studentName,
	}, nil)
}
