package httpx

import (
	"log/slog"
	"net/http"

	"github.com/linguavox/linguavox/internal/core"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Uploads        core.UploadService
	MaxUploadBytes int64
	Logger         *slog.Logger // Logger for handler errors (optional)
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	uploadHandlers := &UploadHandlers{
		Svc:            services.Uploads,
		MaxUploadBytes: services.MaxUploadBytes,
		Logger:         services.Logger,
	}

	mux.HandleFunc("POST /api/uploads", uploadHandlers.Ingest)
	mux.HandleFunc("GET /api/uploads/{id}", uploadHandlers.GetStatus)
	mux.HandleFunc("GET /api/stats", uploadHandlers.GetStats)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}
