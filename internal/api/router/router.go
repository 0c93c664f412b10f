package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/callboardhq/callboard/internal/http/handlers"
	httpmiddleware "github.com/callboardhq/callboard/internal/http/middleware"
	"github.com/callboardhq/callboard/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	VoiceWebhook *handlers.VoiceWebhookHandler
	SMSWebhook   *handlers.SMSWebhookHandler
	SMSSend      *handlers.SMSSendHandler
	Tools        *handlers.ToolsHandler
	Analytics    *handlers.AnalyticsHandler
	CallsAPI     *handlers.CallsAPIHandler
	Admin        *handlers.AdminHandler

	// ToolToken protects the /tools endpoints the voice agent calls
	// mid-conversation. DashboardAuthSecret signs the dashboard JWTs.
	ToolToken           string
	DashboardAuthSecret string

	MetricsHandler     http.Handler
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

	// Public endpoints (provider webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.VoiceWebhook != nil {
			public.Post("/webhooks/voice", cfg.VoiceWebhook.Handle)
		}
		if cfg.SMSWebhook != nil {
			public.Post("/webhooks/sms", cfg.SMSWebhook.Handle)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Agent tool endpoints (shared-secret bearer)
	if cfg.Tools != nil {
		r.Route("/tools", func(tools chi.Router) {
			tools.Use(httpmiddleware.ToolBearer(cfg.ToolToken))
			tools.Post("/create-booking", cfg.Tools.CreateBooking)
			tools.Post("/create-job", cfg.Tools.CreateJob)
			tools.Post("/list-availability", cfg.Tools.ListAvailability)
			tools.Post("/send-confirmation", cfg.Tools.SendConfirmation)
			tools.Post("/dynamic-variables", cfg.Tools.DynamicVariables)
		})
	}

	// Dashboard API (JWT-protected)
	if cfg.DashboardAuthSecret != "" {
		r.Route("/api", func(api chi.Router) {
			api.Use(httpmiddleware.DashboardJWT(cfg.DashboardAuthSecret))
			if cfg.Analytics != nil {
				api.Get("/analytics", cfg.Analytics.Handle)
			}
			if cfg.CallsAPI != nil {
				api.Get("/calls", cfg.CallsAPI.ListCalls)
				api.Get("/calls/{callID}/events", cfg.CallsAPI.GetCallEvents)
				api.Get("/interactions/{phone}", cfg.CallsAPI.GetInteractions)
			}
			if cfg.SMSSend != nil {
				api.Post("/sms/send", cfg.SMSSend.Handle)
			}
		})

		// Tenant provisioning (same dashboard JWT)
		if cfg.Admin != nil {
			r.Route("/admin", func(admin chi.Router) {
				admin.Use(httpmiddleware.DashboardJWT(cfg.DashboardAuthSecret))
				admin.Post("/businesses", cfg.Admin.CreateBusiness)
				admin.Post("/agents", cfg.Admin.MapAgent)
			})
		}
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
