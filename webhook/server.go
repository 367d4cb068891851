package webhook

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jimmo120313/CJOPlugin/trigger"
)

// KeyHeader carries the shared webhook key when it is not sent as ?code=.
const KeyHeader = "x-webhook-key"

const maxBodyBytes = 4 << 20

// Server hosts the Dataverse webhook endpoint.
type Server struct {
	addr   string
	router *gin.Engine
}

type ServerConfig struct {
	Addr     string
	Key      string
	Executor Executor
	// Config documents the trigger fields at /docs/trigger-fields.csv.
	Config trigger.Config
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Executor == nil {
		return nil, errors.New("webhook server requires an executor")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	NewRouter(cfg).Register(router.Group("/"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), trigger.HTTPRequestTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

// Router serves the webhook and its documentation.
type Router struct {
	key      string
	executor Executor
	config   trigger.Config
}

func NewRouter(cfg ServerConfig) *Router {
	return &Router{key: cfg.Key, executor: cfg.Executor, config: cfg.Config}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/api/webhooks/opportunity", r.requireKey, r.handleOpportunity)
	group.GET("/docs/trigger-fields.csv", r.handleFieldDocs)
}

func (r *Router) requireKey(c *gin.Context) {
	provided := c.Query("code")
	if provided == "" {
		provided = c.GetHeader(KeyHeader)
	}
	if !Authorized(r.key, provided) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: "invalid webhook key"})
		return
	}
	c.Next()
}

func (r *Router) handleOpportunity(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
		return
	}
	status, resp := HandlePayload(c.Request.Context(), r.executor, body)
	c.JSON(status, resp)
}

func (r *Router) handleFieldDocs(c *gin.Context) {
	journey := c.DefaultQuery("journey", "(configured journey)")
	out, err := trigger.GenerateFieldDocumentation(r.config, journey).FormatCSV()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(out))
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("HTTP %s %s status=%d ip=%s dur=%s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}
