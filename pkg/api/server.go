package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"driverledger/pkg/auth"
	"driverledger/pkg/logger"
	"driverledger/service"
)

const shutdownTimeout = 10 * time.Second

// NewRouter builds the registry API. gatherer may be nil, in which case
// /metrics is not mounted.
func NewRouter(svc service.IServiceManager, tokens *auth.TokenService, gatherer prometheus.Gatherer, log logger.ILogger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(log))

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	h := &handler{svc: svc}

	api := r.Group("/api")
	{
		api.GET("/platforms/:address", h.getPlatform)
		api.GET("/drivers/:address", h.getDriver)
		api.GET("/drivers/:address/reviews", h.listReviews)
		api.GET("/drivers/:address/reviews/:index", h.getReview)
		api.GET("/plates/:plate", h.getDriverByPlate)
	}

	signed := api.Group("", authenticate(tokens))
	{
		signed.POST("/platforms", h.registerPlatform)
		signed.POST("/platforms/:address/drivers", h.registerDriver)
		signed.POST("/drivers/:address/reviews", h.leaveReview)
	}

	return r
}

// RunServer serves handler on addr until ctx is canceled, then drains
// in-flight requests.
func RunServer(ctx context.Context, addr string, handler http.Handler, log logger.ILogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
