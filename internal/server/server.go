// Package server - HTTP-вход для внешнего планировщика (cron).
package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/maine/hn_keyword_bot/internal/app"
	"github.com/maine/hn_keyword_bot/internal/config"
)

// Invoker - единственная точка входа запуска.
type Invoker interface {
	Invoke(ctx context.Context) app.Response
}

// Server принимает вызовы планировщика.
type Server struct {
	router  *gin.Engine
	cfg     config.Server
	invoker Invoker
	secret  string
	logger  *zap.SugaredLogger
}

// New создаёт сервер. secret, если задан, требуется в заголовке
// Authorization: Bearer <secret> на /api/cron.
func New(cfg config.Server, invoker Invoker, secret string, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	s := &Server{
		router:  router,
		cfg:     cfg,
		invoker: invoker,
		secret:  secret,
		logger:  logger,
	}
	s.setupRoutes()
	return s
}

// Handler возвращает http.Handler (удобно для тестов).
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	cron := s.router.Group("/api/cron")
	cron.Use(s.authorize())
	{
		cron.GET("", s.handleCron())
		cron.POST("", s.handleCron())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func (s *Server) handleCron() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := s.invoker.Invoke(c.Request.Context())
		c.JSON(resp.Status, resp.Body)
	}
}

func (s *Server) authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.secret == "" {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// Run слушает адрес из конфигурации до отмены ctx, затем корректно завершает работу.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "listen")
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Infow("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infow("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
