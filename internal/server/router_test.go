package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/unipilot/internal/auth"
	"github.com/MarcoPoloResearchLab/unipilot/internal/database"
	"github.com/MarcoPoloResearchLab/unipilot/internal/deadline"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/store"
)

var routerNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

type testBackend struct {
	handler http.Handler
	store   *store.Store
	issuer  *auth.TokenIssuer
	token   string
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "backend.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	clock := func() time.Time { return routerNow }
	backendStore, err := store.New(store.Config{
		Database:  db,
		Clock:     clock,
		Deadlines: deadline.New(deadline.Config{Clock: clock, Location: time.UTC}),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("router-secret"),
		Issuer:        "unipilot-backend",
		Audience:      "unipilot-api",
	})
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}
	token, _, err := issuer.IssueToken(context.Background(), "tester")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	handler, err := NewHTTPHandler(Dependencies{Store: backendStore, TokenManager: issuer})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return &testBackend{handler: handler, store: backendStore, issuer: issuer, token: token}
}

func (b *testBackend) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, target, reader)
	request.Header.Set("Authorization", "Bearer "+b.token)
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	b.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode error body %q: %v", recorder.Body.String(), err)
	}
	return payload.Error
}

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err == nil {
		t.Fatalf("expected error without store")
	}
	backend := newTestBackend(t)
	if _, err := NewHTTPHandler(Dependencies{Store: backend.store}); err == nil {
		t.Fatalf("expected error without token manager")
	}
}

func TestRoutesRequireBearerToken(t *testing.T) {
	backend := newTestBackend(t)
	request := httptest.NewRequest(http.MethodGet, "/courses", http.NoBody)
	recorder := httptest.NewRecorder()
	backend.handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestCourseRoutesRoundTrip(t *testing.T) {
	backend := newTestBackend(t)

	created := backend.do(t, http.MethodPost, "/courses", entities.Course{Code: "CS101", Name: "Programming"})
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", created.Code, created.Body.String())
	}
	var course entities.Course
	if err := json.Unmarshal(created.Body.Bytes(), &course); err != nil {
		t.Fatalf("failed to decode course: %v", err)
	}
	if course.ID <= 0 || course.Color != "bg-blue-500" {
		t.Fatalf("unexpected created course %+v", course)
	}

	updated := backend.do(t, http.MethodPatch, "/courses/"+strconv.FormatInt(course.ID, 10), map[string]string{"field": "name", "value": "Intro to Programming"})
	if updated.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", updated.Code, updated.Body.String())
	}

	listed := backend.do(t, http.MethodGet, "/courses", nil)
	if listed.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", listed.Code)
	}
	var list struct {
		Items []entities.Course `json:"items"`
	}
	if err := json.Unmarshal(listed.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Name != "Intro to Programming" {
		t.Fatalf("unexpected list %+v", list.Items)
	}

	deleted := backend.do(t, http.MethodDelete, "/courses/"+strconv.FormatInt(course.ID, 10), nil)
	if deleted.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", deleted.Code)
	}
	missing := backend.do(t, http.MethodDelete, "/courses/"+strconv.FormatInt(course.ID, 10), nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.Code)
	}
	if code := decodeError(t, missing); code != "store.courses.get.not_found" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestEmptyListUsesItemsArray(t *testing.T) {
	backend := newTestBackend(t)
	recorder := backend.do(t, http.MethodGet, "/notes", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if strings.TrimSpace(recorder.Body.String()) != `{"items":[]}` {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

func TestUpdateErrorsMapToStatuses(t *testing.T) {
	backend := newTestBackend(t)
	created, err := backend.store.Assignments().Create(context.Background(), entities.Assignment{Title: "Essay"})
	if err != nil {
		t.Fatalf("failed to seed assignment: %v", err)
	}
	target := "/assignments/" + strconv.FormatInt(created.ID, 10)

	testCases := []struct {
		name   string
		target string
		body   any
		status int
		code   string
	}{
		{name: "unknown field", target: target, body: map[string]string{"field": "id", "value": "5"}, status: http.StatusBadRequest, code: "store.assignments.update.unknown_field"},
		{name: "invalid value", target: target, body: map[string]string{"field": "status_name", "value": "Someday"}, status: http.StatusBadRequest, code: "store.assignments.update.invalid_value"},
		{name: "missing field", target: target, body: map[string]string{"value": "x"}, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "bad id", target: "/assignments/abc", body: map[string]string{"field": "title", "value": "x"}, status: http.StatusBadRequest, code: "invalid_id"},
		{name: "missing record", target: "/assignments/999", body: map[string]string{"field": "title", "value": "x"}, status: http.StatusNotFound, code: "store.assignments.get.not_found"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := backend.do(t, http.MethodPatch, testCase.target, testCase.body)
			if recorder.Code != testCase.status {
				t.Fatalf("expected %d, got %d: %s", testCase.status, recorder.Code, recorder.Body.String())
			}
			if code := decodeError(t, recorder); code != testCase.code {
				t.Fatalf("unexpected error code %q", code)
			}
		})
	}
}

func TestDocumentRoutesFilterAndLimit(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()
	first, err := backend.store.Assignments().Create(ctx, entities.Assignment{Title: "Essay"})
	if err != nil {
		t.Fatalf("failed to seed assignment: %v", err)
	}
	second, err := backend.store.Assignments().Create(ctx, entities.Assignment{Title: "Lab"})
	if err != nil {
		t.Fatalf("failed to seed assignment: %v", err)
	}

	for _, document := range []entities.Document{
		{AssignmentID: first.ID, Type: entities.DocumentTypeSupport, FileName: "brief.pdf", FileSize: 100},
		{AssignmentID: first.ID, Type: entities.DocumentTypeSubmission, FileName: "essay.docx", FileSize: 200},
		{AssignmentID: second.ID, Type: entities.DocumentTypeSupport, FileName: "lab.pdf", FileSize: 300},
	} {
		recorder := backend.do(t, http.MethodPost, "/documents", document)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
	}

	recorder := backend.do(t, http.MethodGet, "/documents?assignment_id="+strconv.FormatInt(first.ID, 10)+"&type=support", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var list struct {
		Items []entities.Document `json:"items"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].FileName != "brief.pdf" {
		t.Fatalf("unexpected filtered documents %+v", list.Items)
	}

	if recorder := backend.do(t, http.MethodGet, "/documents?type=draft", nil); recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", recorder.Code)
	}

	tooLarge := backend.do(t, http.MethodPost, "/documents", entities.Document{
		AssignmentID: first.ID,
		Type:         entities.DocumentTypeSupport,
		FileName:     "huge.zip",
		FileSize:     entities.MaxFileSize + 1,
	})
	if tooLarge.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", tooLarge.Code)
	}
	if code := decodeError(t, tooLarge); code != "store.documents.create.size_limit" {
		t.Fatalf("unexpected error code %q", code)
	}

	storage := backend.do(t, http.MethodGet, "/storage", nil)
	var info entities.StorageInfo
	if err := json.Unmarshal(storage.Body.Bytes(), &info); err != nil {
		t.Fatalf("failed to decode storage: %v", err)
	}
	if info.TotalSize != 600 || info.DocumentCount != 3 || !info.LastCalculatedAt.Equal(routerNow) {
		t.Fatalf("unexpected storage %+v", info)
	}
}

func TestCORSPreflightAllowsPatch(t *testing.T) {
	backend := newTestBackend(t)
	request := httptest.NewRequest(http.MethodOptions, "/courses/1", http.NoBody)
	request.Header.Set("Origin", "http://localhost:5173")
	request.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	request.Header.Set("Access-Control-Request-Headers", "Authorization")
	recorder := httptest.NewRecorder()
	backend.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if !strings.Contains(recorder.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch) {
		t.Fatalf("expected PATCH to be allowed, got %q", recorder.Header().Get("Access-Control-Allow-Methods"))
	}
}
