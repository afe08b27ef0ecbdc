package api

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	database "github.com/portfoliopilot/backend/internal"
)

var allowedCategories = map[string]bool{
	"award":    true,
	"activity": true,
}

var allowedTypes = map[string]bool{
	"olympiad":       true,
	"competition":    true,
	"award_other":    true,
	"project":        true,
	"research":       true,
	"internship":     true,
	"volunteering":   true,
	"leadership":     true,
	"club":           true,
	"activity_other": true,
}

func isValidDate(value string) bool {
	if _, err := time.Parse("2006-01-02", value); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, value)
	return err == nil
}

// optString mirrors "accepted as strings or nulled": a JSON string keeps its
// value, anything else (including explicit null) stores NULL.
func optString(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

// ListAchievements returns all achievements owned by the caller, newest first.
// GET /achievements?userId=
func ListAchievements(c *gin.Context) {
	userID := c.GetString("userID")
	if !isOwner(c.Query("userId"), userID) {
		Failure(c, 403, CodeForbidden, "Forbidden", nil)
		return
	}

	achievements := []database.Achievement{}
	err := database.DB.Select(&achievements,
		`SELECT * FROM achievements WHERE user_id=$1 ORDER BY date DESC`, userID)
	if err != nil {
		Failure(c, 400, "ACHIEVEMENTS_LIST_FAILED", err.Error(), nil)
		return
	}
	Success(c, 200, achievements, nil)
}

// GetAchievement returns one achievement if it exists and belongs to the
// caller. Existence and foreign ownership are deliberately indistinguishable.
// GET /achievements/:id
func GetAchievement(c *gin.Context) {
	var a database.Achievement
	err := database.DB.Get(&a,
		`SELECT * FROM achievements WHERE id=$1 AND user_id=$2`, c.Param("id"), c.GetString("userID"))
	if err != nil {
		Failure(c, 404, "ACHIEVEMENT_NOT_FOUND", "Achievement not found", nil)
		return
	}
	Success(c, 200, a, nil)
}

// CreateAchievement validates and inserts a new achievement owned by the caller.
// POST /achievements
func CreateAchievement(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		Failure(c, 400, CodeValidationError, "Invalid request body", nil)
		return
	}

	title, _ := body["title"].(string)
	if strings.TrimSpace(title) == "" {
		Failure(c, 400, CodeValidationError, "title is required", nil)
		return
	}
	achType, _ := body["type"].(string)
	if !allowedTypes[achType] {
		Failure(c, 400, CodeValidationError, "Invalid type", nil)
		return
	}
	category := "activity"
	if v, present := body["category"]; present {
		s, ok := v.(string)
		if !ok || !allowedCategories[s] {
			Failure(c, 400, CodeValidationError, "Invalid category", nil)
			return
		}
		category = s
	}
	date := time.Now().Format("2006-01-02")
	if v, present := body["date"]; present {
		s, ok := v.(string)
		if !ok || !isValidDate(s) {
			Failure(c, 400, CodeValidationError, "Invalid date", nil)
			return
		}
		date = s
	}

	var a database.Achievement
	err := database.DB.Get(&a, `
		INSERT INTO achievements (id, user_id, title, description, category, type, date, file_url, verification_link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING *`,
		uuid.New(), c.GetString("userID"), strings.TrimSpace(title), optString(body["description"]),
		category, achType, date, optString(body["file_url"]), optString(body["verification_link"]), time.Now())
	if err != nil {
		Failure(c, 400, "ACHIEVEMENT_CREATE_FAILED", err.Error(), nil)
		return
	}
	Success(c, 201, a, nil)
}

// UpdateAchievement applies a partial update. Every supplied field is
// validated with the create rules; supplying nothing valid is an error.
// PATCH /achievements/:id
func UpdateAchievement(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		Failure(c, 400, CodeValidationError, "Invalid request body", nil)
		return
	}

	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if v, present := body["title"]; present {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			Failure(c, 400, CodeValidationError, "Invalid title", nil)
			return
		}
		add("title", strings.TrimSpace(s))
	}
	if v, present := body["description"]; present {
		add("description", optString(v))
	}
	if v, present := body["category"]; present {
		s, ok := v.(string)
		if !ok || !allowedCategories[s] {
			Failure(c, 400, CodeValidationError, "Invalid category", nil)
			return
		}
		add("category", s)
	}
	if v, present := body["type"]; present {
		s, ok := v.(string)
		if !ok || !allowedTypes[s] {
			Failure(c, 400, CodeValidationError, "Invalid type", nil)
			return
		}
		add("type", s)
	}
	if v, present := body["date"]; present {
		s, ok := v.(string)
		if !ok || !isValidDate(s) {
			Failure(c, 400, CodeValidationError, "Invalid date", nil)
			return
		}
		add("date", s)
	}
	if v, present := body["file_url"]; present {
		add("file_url", optString(v))
	}
	if v, present := body["verification_link"]; present {
		add("verification_link", optString(v))
	}

	if len(sets) == 0 {
		Failure(c, 400, CodeValidationError, "No valid fields to update", nil)
		return
	}

	args = append(args, c.Param("id"))
	args = append(args, c.GetString("userID"))
	query := fmt.Sprintf(`UPDATE achievements SET %s WHERE id=$%d AND user_id=$%d RETURNING *`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	var a database.Achievement
	err := database.DB.Get(&a, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		Failure(c, 404, "ACHIEVEMENT_NOT_FOUND", "Achievement not found", nil)
		return
	}
	if err != nil {
		Failure(c, 400, "ACHIEVEMENT_UPDATE_FAILED", err.Error(), nil)
		return
	}
	Success(c, 200, a, nil)
}

// DeleteAchievement removes an achievement owned by the caller.
// DELETE /achievements/:id
func DeleteAchievement(c *gin.Context) {
	res, err := database.DB.Exec(
		`DELETE FROM achievements WHERE id=$1 AND user_id=$2`, c.Param("id"), c.GetString("userID"))
	if err != nil {
		Failure(c, 400, "ACHIEVEMENT_DELETE_FAILED", err.Error(), nil)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		Failure(c, 404, "ACHIEVEMENT_NOT_FOUND", "Achievement not found", nil)
		return
	}
	Success(c, 200, gin.H{"message": "Achievement deleted successfully"}, nil)
}
