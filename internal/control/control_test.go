package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReload(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		refreshErr error
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name:       "post reload",
			method:     http.MethodPost,
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"status": "reloaded"},
		},
		{
			name:       "get reload",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"status": "reloaded"},
		},
		{
			name:       "refresh failure",
			method:     http.MethodPost,
			refreshErr: fmt.Errorf("store unavailable"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]string{"error": "store unavailable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer("127.0.0.1:0", func(context.Context) error {
				return tt.refreshErr
			}, discardLogger())

			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, httptest.NewRequest(tt.method, "/reload", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal body: %v", err)
			}
			if diff := cmp.Diff(tt.wantBody, body); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNotify(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/reload" {
			calls.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := &http.Client{Timeout: time.Second}
	Notify(context.Background(), client, ts.Listener.Addr().String())

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 reload call, got %d", got)
	}
}

func TestNotifyIgnoresUnreachableTarget(t *testing.T) {
	// Notify is best effort; a dead endpoint must not error or panic.
	client := &http.Client{Timeout: 50 * time.Millisecond}
	Notify(context.Background(), client, "127.0.0.1:1")
}
