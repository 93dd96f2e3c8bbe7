package server

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"tripplanner/config"
	"tripplanner/internal/auth"
	"tripplanner/internal/itinerary"
	"tripplanner/internal/payment"
	"tripplanner/internal/quota"
	"tripplanner/pkg/logger"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Auth        *auth.Service
	Itineraries *itinerary.Service
	Quota       *quota.Tracker
	Payments    *payment.Service
	Store       Pinger
	CORS        config.CORSConfig
	Logger      *logger.Logger
}

type handlers struct {
	Deps
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps) *gin.Engine {
	h := &handlers{Deps: deps}
	useJSONFieldNames()

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Logger), corsMiddleware(deps.CORS))

	router.GET("/health", h.health)
	router.POST("/webhook/stripe", h.stripeWebhook)

	authGroup := router.Group("/auth")
	authGroup.POST("/register", h.register)
	authGroup.POST("/login", h.login)
	authGroup.GET("/logout", h.logout)
	authGroup.GET("/check", h.checkAuth)

	protected := router.Group("/", auth.Middleware(deps.Auth))
	protected.GET("/get-usage", h.usage)
	protected.GET("/check-pro-access", h.proAccess)
	protected.POST("/generate-itinerary", h.generateItinerary)
	protected.GET("/itineraries", h.listItineraries)
	protected.GET("/itineraries/:id", h.getItinerary)
	protected.POST("/get-ai-interests", h.suggestInterests)

	pay := protected.Group("/payment")
	pay.POST("/initiate", h.initiatePayment)
	pay.POST("/generate-qr", h.generateQR)
	pay.POST("/verify", h.verifyPayment)
	pay.POST("/manual-verification", h.manualVerification)
	pay.POST("/checkout", h.startCheckout)

	admin := protected.Group("/admin", auth.RequireAdmin())
	admin.GET("/payments", h.listPayments)
	admin.POST("/approve-payment/:id", h.approvePayment)
	admin.POST("/reject-payment/:id", h.rejectPayment)
	admin.POST("/users/:id/plan", h.setUserPlan)

	return router
}

// corsMiddleware allows any origin without credentials when the list is
// empty or "*". Credentialed CORS requires an explicit origin list.
func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Stripe-Signature")
	if len(cfg.AllowOrigins) == 0 || (len(cfg.AllowOrigins) == 1 && cfg.AllowOrigins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowOrigins
		c.AllowCredentials = true
	}
	return cors.New(c)
}

// requestLogger writes one structured line per request.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= 500:
			log.Errorw("HTTP request", fields...)
		case status >= 400:
			log.Warnw("HTTP request", fields...)
		default:
			log.Infow("HTTP request", fields...)
		}
	}
}
