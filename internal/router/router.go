package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/handler"
	"github.com/noah-isme/syllabus-portal/internal/middleware"
	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/service"
	"github.com/noah-isme/syllabus-portal/pkg/logger"
	corsmiddleware "github.com/noah-isme/syllabus-portal/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/syllabus-portal/pkg/middleware/requestid"
)

// Options configures the gateway router.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Auth           middleware.TokenValidator
}

// Handlers groups every HTTP handler the gateway serves.
type Handlers struct {
	Syllabus     *handler.SyllabusHandler
	Workflow     *handler.WorkflowHandler
	Comment      *handler.CommentHandler
	Notification *handler.NotificationHandler
	Assist       *handler.AssistHandler
	Metrics      *handler.MetricsHandler
}

// New builds the gin engine with the global middleware chain and routes.
func New(opts Options, h Handlers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics, "/metrics"))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	api.Use(middleware.JWT(opts.Auth), middleware.WithResponseMeta())

	syllabuses := api.Group("/syllabuses")
	syllabuses.GET("", h.Syllabus.List)
	syllabuses.POST("/drafts", middleware.Audit(opts.Logger, "save_draft", "syllabus"), h.Syllabus.SaveDraft)
	syllabuses.GET("/:id", h.Syllabus.Get)
	syllabuses.POST("/:id/submit", middleware.Audit(opts.Logger, "submit", "syllabus"), h.Syllabus.Submit)
	syllabuses.GET("/:id/versions", h.Syllabus.ListVersions)
	syllabuses.GET("/:id/compare", h.Syllabus.Compare)
	syllabuses.GET("/:id/compare/export", h.Syllabus.ExportComparison)
	syllabuses.GET("/:id/comments", h.Comment.List)
	syllabuses.POST("/:id/comments", h.Comment.Add)

	drafts := api.Group("/drafts")
	drafts.GET("/:key", h.Syllabus.LoadDraft)
	drafts.PUT("/:key", h.Syllabus.StoreDraft)
	drafts.DELETE("/:key", h.Syllabus.DiscardDraft)

	api.DELETE("/comments/:id", h.Comment.Delete)

	workflows := api.Group("/workflows")
	workflows.GET("", h.Workflow.Queue)
	workflows.GET("/:id/review", h.Workflow.Review)
	workflows.GET("/:id/history", h.Workflow.History)
	workflows.GET("/:id/allowed-actions", h.Workflow.AllowedActions)
	workflows.POST("/:id/actions", middleware.Audit(opts.Logger, "review_action", "workflow"), h.Workflow.Dispatch)

	notifications := api.Group("/notifications")
	notifications.GET("", h.Notification.Current)
	notifications.POST("/read-all", h.Notification.MarkAllRead)
	notifications.POST("/:id/read", h.Notification.MarkRead)
	notifications.DELETE("/:id", h.Notification.Delete)

	assist := api.Group("/assist")
	assist.GET("/jobs/:id", h.Assist.Job)
	assist.POST("/:kind", h.Assist.Start)

	admin := api.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/health", h.Metrics.ServiceHealth)

	return r
}
