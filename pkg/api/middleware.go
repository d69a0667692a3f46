package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"driverledger/pkg/auth"
	"driverledger/pkg/logger"
	"driverledger/pkg/models"
)

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderAuthorization = "Authorization"
	BearerPrefix        = "Bearer "

	contextKeyRequestID = "request_id"
	contextKeyIdentity  = "identity"
)

// requestID keeps a valid incoming X-Request-ID and mints one otherwise.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := uuid.NewString()
		if id, err := uuid.Parse(c.GetHeader(HeaderXRequestID)); err == nil {
			rid = id.String()
		}
		c.Set(contextKeyRequestID, rid)
		c.Header(HeaderXRequestID, rid)
		c.Next()
	}
}

func requestLogger(log logger.ILogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("elapsed", time.Since(start)),
			logger.String("request_id", c.GetString(contextKeyRequestID)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request failed", fields...)
			return
		}
		log.Debug("request served", fields...)
	}
}

// authenticate requires Authorization: Bearer <token> and stores the verified
// identity for the handlers.
func authenticate(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderAuthorization)
		if !strings.HasPrefix(raw, BearerPrefix) {
			abortWithMessage(c, http.StatusUnauthorized, "missing Bearer token")
			return
		}
		identity, err := tokens.Validate(strings.TrimPrefix(raw, BearerPrefix))
		if err != nil {
			abortWithMessage(c, http.StatusUnauthorized, err.Error())
			return
		}
		c.Set(contextKeyIdentity, identity)
		c.Next()
	}
}

func identityFrom(c *gin.Context) models.Identity {
	v, _ := c.Get(contextKeyIdentity)
	identity, _ := v.(models.Identity)
	return identity
}
