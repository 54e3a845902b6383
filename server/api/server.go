package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/andydunstall/dnd/pkg/kv"
	"github.com/andydunstall/dnd/pkg/log"
	"github.com/andydunstall/dnd/pkg/middleware"
	"github.com/andydunstall/dnd/pkg/status"
)

// PutResponse is the response to a successful write.
type PutResponse struct {
	// Version is the store version following the write.
	Version uint64 `json:"version"`
}

// Server is the key-value HTTP server, which lets clients read and write the
// local store.
//
// Writes are applied to the local store and replicated to the rest of the
// cluster by gossip. Reads only return the local value, which may be stale.
type Server struct {
	store *kv.Store

	// maxValueSize is the maximum size of a value in bytes. Writes are
	// bounded by the gossip packet size as a value that can't fit in a
	// packet could never be replicated.
	maxValueSize int

	httpServer *http.Server

	logger log.Logger
}

func NewServer(
	store *kv.Store,
	maxValueSize int,
	registry *prometheus.Registry,
	logger log.Logger,
) *Server {
	logger = logger.WithSubsystem("kv")

	router := gin.New()
	server := &Server{
		store:        store,
		maxValueSize: maxValueSize,
		httpServer: &http.Server{
			Handler:  router,
			ErrorLog: logger.StdLogger(zapcore.WarnLevel),
		},
		logger: logger,
	}

	// Recover from panics.
	router.Use(gin.CustomRecoveryWithWriter(nil, server.panicRoute))

	router.Use(middleware.NewLogger(logger))

	metrics := middleware.NewMetrics("kv_http")
	if registry != nil {
		metrics.Register(registry)
	}
	router.Use(metrics.Handler())

	server.registerRoutes(router)

	return server
}

func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info(
		"starting kv server",
		zap.String("addr", ln.Addr().String()),
	)

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

// Shutdown attempts to gracefully shutdown the server by waiting for pending
// requests to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/health", s.healthRoute)

	group := router.Group("/kv")
	group.GET("/:key", s.getRoute)
	group.PUT("/:key", s.putRoute)
	group.POST("/:key", s.putRoute)
}

func (s *Server) healthRoute(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) getRoute(c *gin.Context) {
	v, err := s.get(c.Param("key"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", v)
}

func (s *Server) putRoute(c *gin.Context) {
	version, err := s.put(c.Param("key"), c.Request.Body)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, &PutResponse{
		Version: version,
	})
}

func (s *Server) get(key string) (json.RawMessage, error) {
	v, ok := s.store.Get(key)
	if !ok {
		return nil, status.NewErrorInfo(http.StatusNotFound, "key not found")
	}
	return v, nil
}

func (s *Server) put(key string, r io.Reader) (uint64, error) {
	b, err := io.ReadAll(io.LimitReader(r, int64(s.maxValueSize)+1))
	if err != nil {
		return 0, fmt.Errorf("read body: %w", err)
	}
	if len(b) > s.maxValueSize {
		return 0, status.NewErrorInfo(
			http.StatusRequestEntityTooLarge,
			"value exceeds %d bytes", s.maxValueSize,
		)
	}
	if !json.Valid(b) {
		return 0, status.NewErrorInfo(http.StatusBadRequest, "value must be valid json")
	}

	version := s.store.Put(key, json.RawMessage(b))

	s.logger.Debug(
		"put",
		zap.String("key", key),
		zap.Uint64("version", version),
	)

	return version, nil
}

func (s *Server) writeError(c *gin.Context, err error) {
	var errorInfo *status.ErrorInfo
	if errors.As(err, &errorInfo) {
		c.JSON(errorInfo.StatusCode, errorInfo.Response())
		return
	}

	s.logger.Warn(
		"request failed",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, &status.ErrorResponse{
		Error: "internal error",
	})
}

func (s *Server) panicRoute(c *gin.Context, err any) {
	s.logger.Error(
		"handler panic",
		zap.String("path", c.FullPath()),
		zap.Any("err", err),
	)
	c.AbortWithStatus(http.StatusInternalServerError)
}

func init() {
	// Disable Gin debug logs.
	gin.SetMode(gin.ReleaseMode)
}
