package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/paylink/internal/auditcontext"
	"github.com/smallbiznis/paylink/internal/config"
	invoicedomain "github.com/smallbiznis/paylink/internal/invoice/domain"
	"github.com/smallbiznis/paylink/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	engine     *gin.Engine
	db         *gorm.DB
	log        *zap.Logger
	cfg        config.Config
	invoiceSvc invoicedomain.Service
	paymentSvc paymentdomain.Service

	publicLimiter *rateLimiter
}

type Params struct {
	fx.In

	Engine     *gin.Engine
	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	InvoiceSvc invoicedomain.Service
	PaymentSvc paymentdomain.Service
}

// NewEngine builds the gin engine with recovery and request logging.
func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz"},
	}))
	return engine
}

func NewServer(p Params) *Server {
	return &Server{
		engine:        p.Engine,
		db:            p.DB,
		log:           p.Log.Named("server"),
		cfg:           p.Cfg,
		invoiceSvc:    p.InvoiceSvc,
		paymentSvc:    p.PaymentSvc,
		publicLimiter: newRateLimiter(p.Cfg.PublicRateLimit, time.Minute),
	}
}

// auditContext copies request attribution into the context so audit entries
// record who did what from where.
func auditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if requestID := c.GetString("request_id"); requestID != "" {
			ctx = auditcontext.WithRequestID(ctx, requestID)
		}
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RegisterRoutes mounts the API, webhook and public payment pages.
func (s *Server) RegisterRoutes() {
	s.engine.Use(auditContext())
	s.engine.GET("/healthz", s.Healthz)

	api := s.engine.Group("/api")
	{
		api.POST("/non-user-invoices", s.CreateInvoice)
		api.GET("/non-user-invoices", s.ListInvoices)
		api.GET("/non-user-invoices/:id", s.GetInvoice)
		api.POST("/non-user-invoices/:id/send-email", s.SendInvoiceEmail)
		api.PATCH("/non-user-invoices/:id/status", s.UpdateInvoiceStatus)
	}

	s.engine.POST("/stripe/webhook", s.StripeWebhook)

	public := s.engine.Group("/non-user-invoices", s.publicRateLimit())
	{
		public.GET("/:id/payment-success", s.PaymentSuccessPage)
		public.GET("/:id/payment-cancel", s.PaymentCancelPage)
	}
}

func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("http server stopping")
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)
