package api

import (
	"database/sql"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
)

func TestGetProfile_AggregatesStats(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM profiles WHERE id=$1`)).
		WithArgs(testStudentID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role", "created_at"}).
			AddRow(testStudentID, "Alex Kim", "student", time.Now()))

	verified := "verified"
	rows := sqlmock.NewRows(achievementColumns).
		AddRow("7d9e2a10-0000-0000-0000-000000000001", testStudentID, "Math Olympiad",
			nil, "award", "olympiad", "2026-05-01", nil, nil, verified, time.Now()).
		AddRow("7d9e2a10-0000-0000-0000-000000000002", testStudentID, "Robotics project",
			nil, "activity", "project", "2026-03-10", nil, nil, nil, time.Now()).
		AddRow("7d9e2a10-0000-0000-0000-000000000003", testStudentID, "Food bank",
			nil, "activity", "volunteering", "2026-01-20", nil, nil, "rejected", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM achievements WHERE user_id=$1 ORDER BY date DESC`)).
		WithArgs(testStudentID).
		WillReturnRows(rows)

	w, c := newTestContext(t, http.MethodGet, "/profile/"+testStudentID, nil)
	c.Params = gin.Params{{Key: "id", Value: testStudentID}}
	GetProfile(c)

	if w.Code != 200 {
		t.Fatalf("want 200, got %d: %s", w.Code, w.Body.String())
	}
	data, _ := decodeBody(t, w)["data"].(map[string]any)
	stats, _ := data["stats"].(map[string]any)
	want := map[string]float64{"total": 3, "olympiad": 1, "project": 1, "volunteering": 1, "verified": 1}
	for k, v := range want {
		if stats[k] != v {
			t.Fatalf("stats[%s]: want %v, got %v (stats %v)", k, v, stats[k], stats)
		}
	}
	profile, _ := data["profile"].(map[string]any)
	if profile["name"] != "Alex Kim" {
		t.Fatalf("want profile in payload, got %v", profile)
	}
	achievements, _ := data["achievements"].([]any)
	if len(achievements) != 3 {
		t.Fatalf("want 3 achievements, got %d", len(achievements))
	}
}

func TestGetProfile_UnknownIsNotFound(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM profiles WHERE id=$1`)).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	w, c := newTestContext(t, http.MethodGet, "/profile/nope", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	GetProfile(c)

	if w.Code != 404 {
		t.Fatalf("want 404, got %d: %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["code"] != "PROFILE_NOT_FOUND" {
		t.Fatalf("want PROFILE_NOT_FOUND, got %v", body["code"])
	}
}
