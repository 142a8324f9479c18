package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CallbackPath is where the messenger posts skill requests.
const CallbackPath = "/kakao/callback"

// NewRouter mounts the webhook for the standalone server.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/healthz", handleHealth)
	r.Post(CallbackPath, h.ServeHTTP)
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
