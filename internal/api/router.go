// Package api exposes the wizard sessions over HTTP.
package api

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"lead-wizard/internal/common/logger"
	"lead-wizard/internal/lead/session"
	"lead-wizard/internal/models"
)

// SessionService is the slice of session.Manager the handlers drive.
type SessionService interface {
	Create(ctx context.Context, lang string) (session.Record, error)
	Resume(ctx context.Context, in session.ResumeInput) (session.Record, error)
	Get(ctx context.Context, id string) (session.Record, error)
	Do(ctx context.Context, id, name string, action session.Action) (session.Record, error)
	Close(ctx context.Context, id string) error
	Events(ctx context.Context, id string) ([]models.StepEvent, error)
}

type ZipcodeService interface {
	ByZip(ctx context.Context, zip string) (*models.ZipcodeRecord, error)
	Suggestions(ctx context.Context, prefix string, limit int) ([]models.ZipcodeSuggestion, error)
}

type RouterConfig struct {
	Sessions        SessionService
	Zipcodes        ZipcodeService
	Logger          logger.Logger
	AllowedOrigins  []string
	ServiceName     string
	DefaultLanguage string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "es"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(requestLogger(cfg.Logger))

	h := &Handler{sessions: cfg.Sessions, zipcodes: cfg.Zipcodes, logger: cfg.Logger, lang: cfg.DefaultLanguage}

	api := router.Group("/api")
	{
		api.POST("/sessions", h.CreateSession)

		s := api.Group("/sessions/:id")
		s.GET("", h.GetSession)
		s.DELETE("", h.CloseSession)
		s.GET("/events", h.ListEvents)
		s.POST("/household-type", h.SelectHouseholdType)
		s.POST("/household-basics", h.SubmitHouseholdBasics)
		s.POST("/primary", h.SubmitPrimary)
		s.POST("/members", h.SubmitMembers)
		s.GET("/plans", h.ListPlans)
		s.POST("/plans/select", h.SelectPlan)
		s.POST("/confirm", h.ConfirmPlan)
		s.POST("/consent/check", h.CheckConsent)
		s.POST("/consent/open", h.OpenConsent)
		s.POST("/back", h.Back)

		api.GET("/zipcodes", h.ZipcodeSuggestions)
		api.GET("/zipcodes/:zip", h.ZipcodeByZip)
	}

	return router
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":   c.Request.Method,
			"route":    c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}
		if c.Writer.Status() >= 500 {
			log.Warn("Request failed", fields)
			return
		}
		log.Debug("Request handled", fields)
	}
}
