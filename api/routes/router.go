package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alera-fm/alera-backend/api/controllers"
	"github.com/alera-fm/alera-backend/api/middleware"
	"github.com/alera-fm/alera-backend/internal/emails"
	"github.com/alera-fm/alera-backend/internal/releases"
	"github.com/alera-fm/alera-backend/internal/scans"
	"github.com/alera-fm/alera-backend/internal/subscriptions"
	"github.com/alera-fm/alera-backend/pkg/config"
	"github.com/alera-fm/alera-backend/pkg/enums"
	"github.com/alera-fm/alera-backend/pkg/logger"
	"github.com/alera-fm/alera-backend/pkg/redis"
)

// Dependencies are the services the HTTP surface dispatches to. DB and Redis
// back the readiness probe; Redis also backs the scan submission rate limit.
type Dependencies struct {
	DB            controllers.Pinger
	Redis         *redis.Client
	Gatherer      prometheus.Gatherer
	Releases      releases.Service
	Scans         scans.Service
	Subscriptions subscriptions.Service
	Emails        emails.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	ready := map[string]controllers.Pinger{}
	if deps.DB != nil {
		ready["db"] = deps.DB
	}
	if deps.Redis != nil {
		ready["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	scanPolicy := middleware.RateLimitPolicy{
		Name:   "scan_submit",
		Window: cfg.RateLimit.ScanWindow,
		Limit:  cfg.RateLimit.ScanLimit,
	}
	scanLimit := func(next http.Handler) http.Handler { return next }
	if deps.Redis != nil {
		scanLimit = middleware.RateLimit(scanPolicy, deps.Redis, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleArtist, enums.UserRoleAdmin))

		r.Route("/releases", func(r chi.Router) {
			r.Post("/", controllers.CreateRelease(deps.Releases, logg))
			r.Get("/", controllers.ListReleases(deps.Releases, logg))
			r.Route("/{releaseId}", func(r chi.Router) {
				r.Get("/", controllers.GetRelease(deps.Releases, logg))
				r.With(scanLimit).Post("/scans", controllers.SubmitScan(deps.Releases, deps.Scans, logg))
				r.Get("/scans", controllers.ListReleaseScans(deps.Releases, deps.Scans, logg))
				r.Get("/submission-check", controllers.SubmissionCheck(deps.Releases, deps.Scans, logg))
				r.Post("/submit", controllers.SubmitRelease(deps.Releases, logg))
			})
		})

		r.Post("/entitlements/check", controllers.CheckEntitlement(deps.Subscriptions, logg))
		r.Post("/ai-usage", controllers.TrackAIUsage(deps.Subscriptions, logg))
		r.Get("/subscription", controllers.SubscriptionSummary(deps.Subscriptions, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))

		r.Get("/scans/reviews", controllers.AdminListScanReviews(deps.Scans, logg))
		r.Post("/scans/{scanId}/review", controllers.AdminReviewScan(deps.Scans, logg))
		r.Post("/releases/{releaseId}/status", controllers.AdminUpdateReleaseStatus(deps.Releases, logg))
		r.Post("/emails", controllers.AdminEnqueueEmail(deps.Emails, logg))
	})

	return r
}
