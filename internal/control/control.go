// Package control exposes the loopback endpoint that forces an immediate
// keyword refresh.
package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RefreshFunc performs a synchronous keyword registry refresh.
type RefreshFunc func(ctx context.Context) error

// NewServer returns an HTTP server bound to addr serving the reload
// trigger. A refresh failure is reported to the caller but leaves the
// previous keyword set active.
func NewServer(addr string, refresh RefreshFunc, log *slog.Logger) *http.Server {
	r := chi.NewRouter()

	reload := func(w http.ResponseWriter, req *http.Request) {
		if err := refresh(req.Context()); err != nil {
			log.Error("reload failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
	}
	r.Get("/reload", reload)
	r.Post("/reload", reload)

	return &http.Server{Addr: addr, Handler: r}
}

// Notify fires a best-effort reload trigger at the control endpoint and
// ignores any failure; the watcher refreshes on its own timer regardless.
func Notify(ctx context.Context, client *http.Client, addr string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+"/reload", nil)
	if err != nil {
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
