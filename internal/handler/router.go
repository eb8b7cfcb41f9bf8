package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/paiban/banbiao/internal/auth"
	"github.com/paiban/banbiao/internal/config"
	"github.com/paiban/banbiao/internal/database"
	"github.com/paiban/banbiao/internal/metrics"
	"github.com/paiban/banbiao/internal/middleware"
	"github.com/paiban/banbiao/internal/service"
)

// Dependencies 路由依赖
type Dependencies struct {
	Config        *config.Config
	DB            *database.DB
	Authenticator *auth.Authenticator
	Demands       *service.DemandService
	Schedules     *service.ScheduleService
	Availability  *service.AvailabilityService
	Transfers     *service.TransferService
	Rules         *service.RuleService
	Version       string
}

// NewRouter 组装全部路由
// 中间件顺序：requestID → recovery → logging → rateLimit → cors → auth。
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)

	limiter := middleware.NewRateLimiter(deps.Config.API.RateLimit)
	r.Use(limiter.Middleware)

	if deps.Config.API.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.Config.API.CORS.Origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID", "X-User-ID", "X-User-Email", "X-Role", "X-Location"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// 系统端点不经过鉴权
	r.Get("/health", healthHandler(deps.DB))
	r.Get("/version", versionHandler(deps.Version))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	demand := NewDemandHandler(deps.Demands)
	schedule := NewScheduleHandler(deps.Schedules)
	availability := NewAvailabilityHandler(deps.Availability)
	transfer := NewTransferHandler(deps.Transfers)
	rule := NewRuleHandler(deps.Rules)

	r.Group(func(r chi.Router) {
		r.Use(deps.Authenticator.Middleware)

		r.Route("/availability", func(r chi.Router) {
			r.Post("/", availability.SaveBulk)
			r.Get("/", availability.List)
		})
		r.Get("/employees", availability.ListEmployees)

		r.Route("/demand", func(r chi.Router) {
			r.Post("/day", demand.SaveDay)
			r.Get("/day", demand.GetDay)
			r.Post("/default", demand.SaveDefault)
			r.Get("/default", demand.GetDefault)
			r.Post("/default/bulk", demand.SaveDefaultBulk)
			r.Get("/default/week", demand.DefaultWeek)
			r.Get("/{demand_id}", demand.Get)
		})
		r.Get("/demands", demand.List)

		r.Post("/generate-day", schedule.GenerateDay)
		r.Post("/generate-range", schedule.GenerateRange)

		r.Route("/schedule", func(r chi.Router) {
			r.Route("/shift", func(r chi.Router) {
				r.Get("/{shift_uid}", schedule.GetShift)
				r.Post("/{shift_uid}", schedule.UpdateShift)
				r.Post("/{shift_uid}/approve", schedule.ApproveShift)
			})
			r.Route("/shift-transfer", func(r chi.Router) {
				r.Post("/", transfer.Create)
				r.Get("/", transfer.List)
				r.Get("/{request_id}", transfer.Get)
				r.Post("/{request_id}/approve", transfer.Approve)
				r.Post("/{request_id}/reject", transfer.Reject)
			})
			r.Get("/{demand_id}", schedule.Get)
			r.Get("/{demand_id}/day/{day}", schedule.GetDay)
		})
		r.Get("/days/{day}", schedule.DaySchedule)

		r.Route("/rules", func(r chi.Router) {
			r.Post("/", rule.CreateRule)
			r.Get("/", rule.ListRules)
			r.Get("/{rule_id}", rule.GetRule)
		})
		r.Route("/special-days", func(r chi.Router) {
			r.Post("/", rule.CreateSpecialDay)
			r.Get("/", rule.ListSpecialDays)
		})
	})

	return r
}

// healthHandler 健康检查，附带数据库连通性
func healthHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		respondJSON(w, code, map[string]interface{}{
			"status":    status,
			"service":   "banbiao",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler 版本信息
func versionHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]interface{}{"version": version})
	}
}
