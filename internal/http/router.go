package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"credential-service/internal/metrics"
	"credential-service/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	userH *UserHandler,
	tokens *service.TokenService,
	m *metrics.Metrics,
) *gin.Engine {
	registerValidations()

	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	auth := AuthMiddleware(tokens)

	user := r.Group("/user")
	user.POST("/create", userH.CreateUser)
	user.POST("/login", userH.Login)
	user.POST("/check-username", userH.CheckUserName)
	user.POST("/verify-email", userH.VerifyEmail)
	user.POST("/forgot-password", userH.ForgotPassword)
	user.POST("/reset-password", userH.ResetPassword)
	user.GET("/me", auth, userH.Me)
	user.POST("/resend-verification", auth, userH.ResendVerification)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
