package apihttp

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"adpulse/internal/chat"
	"adpulse/internal/detect"
	"adpulse/internal/logger"
	"adpulse/internal/store"

	"github.com/gin-gonic/gin"
)

// Server serves the analytics chat route, the detector and the run ledger.
type Server struct {
	addr   string
	router *gin.Engine
}

type ServerConfig struct {
	Addr       string
	Chat       *chat.Service
	Classifier *detect.Classifier
	Runs       store.RunLedger
	ReportsDir string
	CORSAllow  string
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Chat == nil {
		return nil, errors.New("http server requires a chat service")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.CORSAllow == "" {
		cfg.CORSAllow = "*"
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), cors(cfg.CORSAllow))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.ReportsDir != "" {
		if st, err := os.Stat(cfg.ReportsDir); err == nil && st.IsDir() {
			router.Static("/reports", cfg.ReportsDir)
		} else {
			logger.Warnf("reports dir %s not found, /reports disabled", cfg.ReportsDir)
		}
	}
	h := &handlers{chat: cfg.Chat, classifier: cfg.Classifier, runs: cfg.Runs}
	h.Register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is cancelled, then shuts down with a 5s grace
// period.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("http listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Infof("http shutting down")
		return srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", c.Request.Method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

func cors(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
