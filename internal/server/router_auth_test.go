package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubTokenValidator struct {
	subject     string
	validateErr error
}

func (s stubTokenValidator) ValidateToken(string) (string, error) {
	return s.subject, s.validateErr
}

func runAuthorize(t *testing.T, header string, validator TokenValidator) (*httptest.ResponseRecorder, *gin.Context, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/courses", http.NoBody)
	if header != "" {
		request.Header.Set("Authorization", header)
	}
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{tokens: validator, logger: zap.New(core)}
	handler.authorizeRequest(ctx)
	return recorder, ctx, logs
}

func TestAuthorizeRequestLogsExpiredTokenAtInfoLevel(t *testing.T) {
	recorder, _, logs := runAuthorize(t, "Bearer expired-token", stubTokenValidator{validateErr: jwt.ErrTokenExpired})

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	if entry.Message != "token validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), jwt.ErrTokenExpired) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired token error context, got %v", entry.Context)
	}
}

func TestAuthorizeRequestLogsUnexpectedTokenErrorAtWarnLevel(t *testing.T) {
	recorder, _, logs := runAuthorize(t, "Bearer invalid-token", stubTokenValidator{validateErr: errors.New("signature mismatch")})

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for unexpected error, got %s", entries[0].Level)
	}
}

func TestAuthorizeRequestRejectsMissingBearer(t *testing.T) {
	for _, header := range []string{"", "Basic abc", "Bearer   "} {
		recorder, ctx, logs := runAuthorize(t, header, stubTokenValidator{subject: "cli"})
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: unexpected status %d", header, recorder.Code)
		}
		if !ctx.IsAborted() {
			t.Fatalf("header %q: expected request to be aborted", header)
		}
		if logs.Len() != 0 {
			t.Fatalf("header %q: expected no log entries, got %d", header, logs.Len())
		}
	}
}

func TestAuthorizeRequestStoresSubject(t *testing.T) {
	recorder, ctx, _ := runAuthorize(t, "Bearer good-token", stubTokenValidator{subject: "cli"})
	if ctx.IsAborted() {
		t.Fatalf("expected request to continue, got status %d", recorder.Code)
	}
	if got := ctx.GetString(subjectContextKey); got != "cli" {
		t.Fatalf("unexpected subject %q", got)
	}
}
