package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewRouter wires the HTTP routes.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = 32 << 20

	router.GET("/health", h.HealthCheck)

	api := router.Group("/v1")
	{
		api.POST("/search", h.Search)
	}
	return router
}

func New(addr string, processor MessageProcessor, maxUploadMB int64, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	h := NewHandler(processor, maxUploadMB<<20, log)
	server := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
			// Processing a message calls several remote models.
			WriteTimeout:   3 * time.Minute,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		log: log,
	}

	log.Info("Server created successfully", zap.String("address", addr))
	return server
}

func (s *Server) Run() error {
	s.log.Info("Server is running", zap.String("address", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
