package api

import (
	"github.com/gin-gonic/gin"

	database "github.com/portfoliopilot/backend/internal"
)

// GetProfile returns a public profile together with its achievements and
// aggregate stats. Verified count comes from verification_status, the model
// the verification flow maintains.
// GET /profile/:id
func GetProfile(c *gin.Context) {
	requestID := RequestID(c)
	id := c.Param("id")

	var profile database.Profile
	if err := database.DB.Get(&profile, `SELECT * FROM profiles WHERE id=$1`, id); err != nil {
		logEvent("profile_get_failed", requestID).WithField("profile_id", id).Error(err)
		Failure(c, 404, "PROFILE_NOT_FOUND", "Profile not found", nil)
		return
	}

	achievements := []database.Achievement{}
	err := database.DB.Select(&achievements,
		`SELECT * FROM achievements WHERE user_id=$1 ORDER BY date DESC`, id)
	if err != nil {
		logEvent("profile_get_failed", requestID).WithField("profile_id", id).Error(err)
		Failure(c, 404, "PROFILE_NOT_FOUND", "Profile not found", nil)
		return
	}

	stats := gin.H{
		"total":        len(achievements),
		"olympiad":     countByType(achievements, "olympiad"),
		"project":      countByType(achievements, "project"),
		"volunteering": countByType(achievements, "volunteering"),
		"verified":     countVerified(achievements),
	}

	Success(c, 200, gin.H{
		"profile":      profile,
		"achievements": achievements,
		"stats":        stats,
	}, nil)
}

func countByType(achievements []database.Achievement, t string) int {
	n := 0
	for _, a := range achievements {
		if a.Type == t {
			n++
		}
	}
	return n
}

func countVerified(achievements []database.Achievement) int {
	n := 0
	for _, a := range achievements {
		if a.VerificationStatus != nil && *a.VerificationStatus == "verified" {
			n++
		}
	}
	return n
}
