package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// logEntry mirrors the JSON fields emitted by the logging middleware.
type logEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	Size      int    `json:"size"`
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	ErrorCode string `json:"error_code"`
}

func captureLog(t *testing.T, handler http.Handler, req *http.Request) logEntry {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rr := httptest.NewRecorder()
	Logging(logger)(handler).ServeHTTP(rr, req)

	var entry logEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogging_Success(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	entry := captureLog(t, handler, req)

	if entry.Level != "INFO" {
		t.Errorf("expected INFO level, got %s", entry.Level)
	}
	if entry.Msg != "request completed" {
		t.Errorf("unexpected message %q", entry.Msg)
	}
	if entry.Method != http.MethodGet || entry.Path != "/health" {
		t.Errorf("unexpected method/path %s %s", entry.Method, entry.Path)
	}
	if entry.Status != http.StatusOK {
		t.Errorf("expected status 200, got %d", entry.Status)
	}
	if entry.Size != len("hello") {
		t.Errorf("expected size %d, got %d", len("hello"), entry.Size)
	}
}

func TestLogging_ClientErrorLogsWarn(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/search", nil)
	entry := captureLog(t, handler, req)

	if entry.Level != "WARN" {
		t.Errorf("expected WARN level for 4xx, got %s", entry.Level)
	}
	if entry.Status != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", entry.Status)
	}
}

func TestLogging_ServerErrorLogsError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	entry := captureLog(t, handler, req)

	if entry.Level != "ERROR" {
		t.Errorf("expected ERROR level for 5xx, got %s", entry.Level)
	}
}

func TestLogging_IncludesRequestID(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	RequestID(Logging(logger)(handler)).ServeHTTP(rr, req)

	var entry logEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if entry.RequestID == "" {
		t.Error("expected request_id in log entry")
	}
}

func TestLogging_IncludesUserID(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req = req.WithContext(SetUserID(req.Context(), "user-123"))
	rr := httptest.NewRecorder()
	Logging(logger)(handler).ServeHTTP(rr, req)

	var entry logEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if entry.UserID != "user-123" {
		t.Errorf("expected user_id user-123, got %q", entry.UserID)
	}
}

func TestLogging_IncludesErrorCodeOnFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*r = *r.WithContext(SetErrorCode(r.Context(), "invalid_input"))
		w.WriteHeader(http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/search", nil)
	entry := captureLog(t, handler, req)

	if entry.ErrorCode != "invalid_input" {
		t.Errorf("expected error_code invalid_input, got %q", entry.ErrorCode)
	}
}

func TestLogging_DefaultStatusIs200(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Handler writes no explicit header.
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	entry := captureLog(t, handler, req)

	if entry.Status != http.StatusOK {
		t.Errorf("expected default status 200, got %d", entry.Status)
	}
}

func TestResponseWriter_OnlyFirstStatusSticks(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := newResponseWriter(rr)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("expected first status 404 to stick, got %d", rw.statusCode)
	}
}

func TestNewLogger_Environments(t *testing.T) {
	if NewLogger("production") == nil {
		t.Error("expected non-nil production logger")
	}
	if NewLogger("development") == nil {
		t.Error("expected non-nil development logger")
	}
}

func TestGetUserID_EmptyContext(t *testing.T) {
	if got := GetUserID(context.Background()); got != "" {
		t.Errorf("expected empty user ID, got %q", got)
	}
}

func TestGetErrorCode_EmptyContext(t *testing.T) {
	if got := GetErrorCode(context.Background()); got != "" {
		t.Errorf("expected empty error code, got %q", got)
	}
}

func TestLogging_LatencyFieldPresent(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	Logging(logger)(handler).ServeHTTP(rr, req)

	if !strings.Contains(buf.String(), "latency_ms") {
		t.Error("expected latency_ms field in log output")
	}
}
