package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/curelink/patient-portal/internal/http/handlers"
	httpmiddleware "github.com/curelink/patient-portal/internal/http/middleware"
	"github.com/curelink/patient-portal/internal/push"
	"github.com/curelink/patient-portal/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	CartHandler        *handlers.CartHandler
	PushHub            *push.Hub
	MetricsHandler     http.Handler
	PatientJWTSecret   string
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Patient endpoints
	r.Group(func(patient chi.Router) {
		patient.Use(httpmiddleware.PatientJWT(cfg.PatientJWTSecret))
		patient.Route("/api/v1/cart", func(r chi.Router) {
			r.Get("/", cfg.CartHandler.Get)
			r.Get("/grouped", cfg.CartHandler.Grouped)
			r.Delete("/", cfg.CartHandler.Clear)
			r.Post("/items", cfg.CartHandler.AddItem)
			r.Patch("/items", cfg.CartHandler.UpdateItem)
			r.Delete("/items", cfg.CartHandler.RemoveItem)
			r.Post("/checkout", cfg.CartHandler.Checkout)
		})
		if cfg.PushHub != nil {
			patient.Get("/api/v1/stream", cfg.PushHub.HandleWebSocket)
		}
	})

	return r
}
