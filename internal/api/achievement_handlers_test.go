package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	database "github.com/portfoliopilot/backend/internal"
)

var achievementColumns = []string{
	"id", "user_id", "title", "description", "category", "type", "date",
	"file_url", "verification_link", "verification_status", "created_at",
}

func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	database.DB = sqlx.NewDb(db, "sqlmock")
	return mock
}

func newTestContext(t *testing.T, method, target string, body any) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		req = httptest.NewRequest(method, target, bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	return w, c
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v: %s", err, w.Body.String())
	}
	return out
}

func TestGetAchievement_ForeignRecordIsNotFound(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM achievements WHERE id=$1 AND user_id=$2`)).
		WithArgs("ach-1", "user-b").
		WillReturnError(sql.ErrNoRows)

	w, c := newTestContext(t, http.MethodGet, "/achievements/ach-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "ach-1"}}
	c.Set("userID", "user-b")
	GetAchievement(c)

	if w.Code != 404 {
		t.Fatalf("want 404, got %d: %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["code"] != "ACHIEVEMENT_NOT_FOUND" {
		t.Fatalf("want ACHIEVEMENT_NOT_FOUND, got %v", body["code"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateAchievement_DefaultsCategoryAndDate(t *testing.T) {
	mock := newMockDB(t)
	today := time.Now().Format("2006-01-02")

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO achievements`)).
		WithArgs(sqlmock.AnyArg(), "user-1", "Math Olympiad", nil, "activity", "olympiad",
			today, nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(achievementColumns).AddRow(
			"6a0b7b9e-0000-0000-0000-000000000001", "6a0b7b9e-0000-0000-0000-000000000002",
			"Math Olympiad", nil, "activity", "olympiad", today, nil, nil, nil, time.Now()))

	w, c := newTestContext(t, http.MethodPost, "/achievements", map[string]any{
		"title": "  Math Olympiad  ",
		"type":  "olympiad",
	})
	c.Set("userID", "user-1")
	CreateAchievement(c)

	if w.Code != 201 {
		t.Fatalf("want 201, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateAchievement_Validation(t *testing.T) {
	newMockDB(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"type": "olympiad"}},
		{"blank title", map[string]any{"title": "   ", "type": "olympiad"}},
		{"unknown type", map[string]any{"title": "x", "type": "sports"}},
		{"bad category", map[string]any{"title": "x", "type": "olympiad", "category": "hobby"}},
		{"bad date", map[string]any{"title": "x", "type": "olympiad", "date": "not-a-date"}},
	}
	for _, tc := range cases {
		w, c := newTestContext(t, http.MethodPost, "/achievements", tc.body)
		c.Set("userID", "user-1")
		CreateAchievement(c)
		if w.Code != 400 {
			t.Fatalf("%s: want 400, got %d: %s", tc.name, w.Code, w.Body.String())
		}
		if body := decodeBody(t, w); body["code"] != CodeValidationError {
			t.Fatalf("%s: want VALIDATION_ERROR, got %v", tc.name, body["code"])
		}
	}
}

func TestUpdateAchievement_NoValidFields(t *testing.T) {
	newMockDB(t)

	w, c := newTestContext(t, http.MethodPatch, "/achievements/ach-1", map[string]any{})
	c.Params = gin.Params{{Key: "id", Value: "ach-1"}}
	c.Set("userID", "user-1")
	UpdateAchievement(c)

	if w.Code != 400 {
		t.Fatalf("want 400, got %d: %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["error"] != "No valid fields to update" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}
}

func TestUpdateAchievement_ForeignRecordIsNotFound(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE achievements SET title=$1 WHERE id=$2 AND user_id=$3 RETURNING *`)).
		WithArgs("New title", "ach-1", "user-b").
		WillReturnError(sql.ErrNoRows)

	w, c := newTestContext(t, http.MethodPatch, "/achievements/ach-1", map[string]any{"title": "New title"})
	c.Params = gin.Params{{Key: "id", Value: "ach-1"}}
	c.Set("userID", "user-b")
	UpdateAchievement(c)

	if w.Code != 404 {
		t.Fatalf("want 404, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteAchievement_ForeignRecordIsNotFound(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM achievements WHERE id=$1 AND user_id=$2`)).
		WithArgs("ach-1", "user-b").
		WillReturnResult(sqlmock.NewResult(0, 0))

	w, c := newTestContext(t, http.MethodDelete, "/achievements/ach-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "ach-1"}}
	c.Set("userID", "user-b")
	DeleteAchievement(c)

	if w.Code != 404 {
		t.Fatalf("want 404, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListAchievements_ForeignUserIsForbidden(t *testing.T) {
	newMockDB(t)

	w, c := newTestContext(t, http.MethodGet, "/achievements?userId=user-2", nil)
	c.Set("userID", "user-1")
	ListAchievements(c)

	if w.Code != 403 {
		t.Fatalf("want 403, got %d: %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["code"] != CodeForbidden {
		t.Fatalf("want FORBIDDEN, got %v", body["code"])
	}
}
