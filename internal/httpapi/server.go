// Package httpapi exposes a feature-tree Backend over HTTP (Server) and
// consumes one (Client). The Client satisfies coordinator.Backend, so a
// coordinator can run against a remote store unchanged.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HendryAvila/foundry/internal/coordinator"
	"github.com/HendryAvila/foundry/internal/store"
	"github.com/HendryAvila/foundry/internal/tree"
)

// Describer is implemented by backends that store node descriptions.
type Describer interface {
	SetDescription(ctx context.Context, id, description string) error
}

// Lister is implemented by backends that can enumerate projects.
type Lister interface {
	Projects(ctx context.Context) ([]string, error)
}

// Server routes HTTP requests to a Backend.
type Server struct {
	backend coordinator.Backend
	log     *slog.Logger
	engine  *gin.Engine
}

// NewServer builds the router for backend.
func NewServer(backend coordinator.Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		backend: backend,
		log:     logger.With("component", "httpapi"),
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.observe())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	{
		api.GET("/projects", s.listProjects)
		projects := api.Group("/projects/:project")
		{
			projects.GET("/tree", s.fetchTree)
			projects.POST("/nodes", s.createNode)
		}
		nodes := api.Group("/nodes/:id")
		{
			nodes.PATCH("", s.patchNode)
			nodes.PUT("/status", s.setStatus)
			nodes.PUT("/level", s.setLevel)
			nodes.POST("/move", s.moveNode)
			nodes.DELETE("", s.deleteNode)
			nodes.POST("/restore", s.restoreNode)
		}
	}
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// observe records request metrics and logs each request.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := strconv.Itoa(c.Writer.Status())
		elapsed := time.Since(start)
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, code).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())
		s.log.Debug("request", "method", c.Request.Method, "route", route, "status", code, "elapsed", elapsed)
	}
}

// ─── Handlers ────────────────────────────────────────────────────────────────

type createRequest struct {
	ParentID string `json:"parentId"`
	Title    string `json:"title"`
}

type patchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type statusRequest struct {
	Status tree.Status `json:"status" binding:"required"`
}

type levelRequest struct {
	Level tree.Level `json:"level" binding:"required"`
}

type moveRequest struct {
	ParentID string `json:"parentId"`
	Position int    `json:"position" binding:"min=0"`
}

func (s *Server) fetchTree(c *gin.Context) {
	forest, err := s.backend.FetchTree(c.Request.Context(), c.Param("project"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if forest == nil {
		forest = []*tree.Node{}
	}
	c.JSON(http.StatusOK, forest)
}

func (s *Server) createNode(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	n, err := s.backend.CreateNode(c.Request.Context(), c.Param("project"), req.ParentID, req.Title)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (s *Server) patchNode(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if req.Title == nil && req.Description == nil {
		s.badRequest(c, errors.New("nothing to update"))
		return
	}
	ctx, id := c.Request.Context(), c.Param("id")
	if req.Title != nil {
		if err := s.backend.RenameNode(ctx, id, *req.Title); err != nil {
			s.fail(c, err)
			return
		}
	}
	if req.Description != nil {
		d, ok := s.backend.(Describer)
		if !ok {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "descriptions are not supported by this backend"})
			return
		}
		if err := d.SetDescription(ctx, id, *req.Description); err != nil {
			s.fail(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listProjects(c *gin.Context) {
	l, ok := s.backend.(Lister)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "project listing is not supported by this backend"})
		return
	}
	ids, err := l.Projects(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, ids)
}

func (s *Server) setStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.backend.SetStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) setLevel(c *gin.Context) {
	var req levelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.backend.SetLevel(c.Request.Context(), c.Param("id"), req.Level); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) moveNode(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.backend.MoveNode(c.Request.Context(), c.Param("id"), req.ParentID, req.Position); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteNode(c *gin.Context) {
	policy := tree.Policy(strings.TrimSpace(c.Query("policy")))
	if err := s.backend.DeleteNode(c.Request.Context(), c.Param("id"), policy); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) restoreNode(c *gin.Context) {
	if err := s.backend.RestoreNode(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ─── Errors ──────────────────────────────────────────────────────────────────

// statusFor maps backend errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, tree.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrNothingToRestore):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("backend failure", "path", c.Request.URL.Path, "error", err)
	} else {
		s.log.Info("request rejected", "path", c.Request.URL.Path, "status", code, "error", err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
