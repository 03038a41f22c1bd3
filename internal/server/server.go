package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/meridian-data/streamloader/internal/state"
)

// Server exposes the loader's operational endpoints: a health probe and a
// read-only view of the tracked schema state.
type Server struct {
	Engine  *gin.Engine
	Addr    string
	db      *sql.DB
	tracker *state.Tracker
}

func New(addr string, db *sql.DB, tracker *state.Tracker, mode string) *Server {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	s := &Server{
		Engine:  r,
		Addr:    addr,
		db:      db,
		tracker: tracker,
	}

	r.GET("/health", s.healthHandler)
	r.GET("/state", s.stateHandler)

	return s
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			slog.Error("Health check failed: database unreachable", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
	})
}

// stateHandler summarizes the tracked groups: how many versions each table
// reflects and which one is latest.
func (s *Server) stateHandler(c *gin.Context) {
	snap := s.tracker.Current()

	groups := make([]gin.H, 0, len(snap))
	for group, list := range snap {
		groups = append(groups, gin.H{
			"group":    group.String(),
			"versions": len(list),
			"latest":   list.Latest().Self.String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"tracked_groups": len(snap),
		"groups":         groups,
	})
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Addr,
		Handler: s.Engine,
	}

	slog.Info("Starting HTTP Server...", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("Stopping HTTP Server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP Server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
