package database

import (
	"time"

	"github.com/google/uuid"
)

// Achievement represents the 'achievements' table. Rows are owned exclusively
// by UserID; VerificationStatus is maintained by the verification flow, not by
// the CRUD handlers.
type Achievement struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	UserID             uuid.UUID `db:"user_id" json:"user_id"`
	Title              string    `db:"title" json:"title"`
	Description        *string   `db:"description" json:"description"` // Use *string for nullable fields
	Category           string    `db:"category" json:"category"`
	Type               string    `db:"type" json:"type"`
	Date               string    `db:"date" json:"date"`
	FileURL            *string   `db:"file_url" json:"file_url"`
	VerificationLink   *string   `db:"verification_link" json:"verification_link"`
	VerificationStatus *string   `db:"verification_status" json:"verification_status"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// VerificationRequest represents the 'verification_requests' table.
// Token is generated once at creation and acts as the sole capability to
// respond to the request. Status only ever moves pending -> approved or
// pending -> rejected.
type VerificationRequest struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	AchievementID   uuid.UUID  `db:"achievement_id" json:"achievement_id"`
	StudentID       uuid.UUID  `db:"student_id" json:"student_id"`
	VerifierEmail   string     `db:"verifier_email" json:"verifier_email"` // stored trimmed + lower-cased
	VerifierID      *uuid.UUID `db:"verifier_id" json:"verifier_id"`       // bound on first authenticated response
	Message         *string    `db:"message" json:"message"`
	Status          string     `db:"status" json:"status"`
	Token           string     `db:"token" json:"-"`
	VerifierComment *string    `db:"verifier_comment" json:"verifier_comment"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// Profile represents the 'profiles' table (public display data + role).
type Profile struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Role      string    `db:"role" json:"role"` // e.g., "student", "verifier"
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Verification request statuses
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)
