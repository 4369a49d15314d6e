package router

import (
	"context"
	"net/http"
	"time"

	_ "storefront/docs"
	"storefront/internal/transport/http/handlers"
	"storefront/internal/transport/http/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Pinger проверяет доступность хранилища для /health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Carts       handlers.CartUsecase
	Checkout    handlers.CheckoutUsecase
	Orders      handlers.OrderUsecase
	Payments    handlers.PaymentUsecase
	Stock       handlers.StockUsecase
	Tokens      middleware.TokenVerifier
	DB          Pinger
	CORSOrigins []string
}

func Router(d Deps, log *zap.Logger) (*gin.Engine, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.HeaderSessionKey},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: origins[0] != "*",
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/health", health(d.DB))

	cartH := handlers.NewCartHandler(d.Carts, log)
	checkoutH := handlers.NewCheckoutHandler(d.Checkout, log)
	orderH := handlers.NewOrderHandler(d.Orders, log)
	paymentH := handlers.NewPaymentHandler(d.Payments, log)
	webhookH := handlers.NewWebhookHandler(d.Payments, log)
	stockH := handlers.NewStockHandler(d.Stock, log)

	api := r.Group("/api/v1")
	// вебхуки приходят без токена, подлинность проверяет адаптер шлюза
	api.POST("/webhooks/:gateway", webhookH.Handle)

	withIdentity := api.Group("", middleware.Identity(d.Tokens, log))

	cart := withIdentity.Group("/cart")
	{
		cart.GET("", cartH.View)
		cart.DELETE("", cartH.Clear)
		cart.POST("/items", cartH.AddItem)
		cart.PATCH("/items/:id", cartH.UpdateItem)
		cart.DELETE("/items/:id", cartH.RemoveItem)
		cart.POST("/coupon", cartH.ApplyCoupon)
		cart.DELETE("/coupon", cartH.RemoveCoupon)
	}

	authed := withIdentity.Group("", middleware.AuthRequired())
	authed.POST("/checkout", checkoutH.Checkout)
	authed.GET("/orders", orderH.List)
	authed.GET("/orders/:id", orderH.Get)
	authed.POST("/orders/:id/cancel", orderH.Cancel)
	authed.POST("/payments", paymentH.Create)
	authed.GET("/payments/:id", paymentH.Get)
	authed.POST("/payments/:id/refund", paymentH.Refund)

	admin := withIdentity.Group("/admin", middleware.AdminOnly())
	{
		admin.PATCH("/orders/:id/status", orderH.UpdateStatus)
		admin.POST("/payments/:id/sync", paymentH.Sync)
		admin.PUT("/stock", stockH.Set)
	}

	return r, nil
}

func health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("HTTP запрос", fields...)
			return
		}
		log.Debug("HTTP запрос", fields...)
	}
}
