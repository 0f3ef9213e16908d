package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/waybar-battery/pkg/config"
	"github.com/charlie0129/waybar-battery/pkg/events"
)

// Server exposes the daemon status over HTTP on a unix socket. It only reads
// what the loop has already emitted.
type Server struct {
	conf config.Config
	loop *Loop
	hub  *events.EventHub

	srv *http.Server
}

func NewServer(conf config.Config, loop *Loop, hub *events.EventHub) *Server {
	return &Server{
		conf: conf,
		loop: loop,
		hub:  hub,
	}
}

func (s *Server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/status", s.getStatus)
	router.GET("/recent-events", s.getRecentEvents)
	router.GET("/config", s.getConfig)
	router.PUT("/low-threshold", s.setLowThreshold)
	router.PUT("/critical-threshold", s.setCriticalThreshold)
	router.PUT("/notifications", s.setNotifications)
	router.GET("/events", s.streamEvents)
	router.GET("/version", getVersion)

	return router
}

// Start listens on unixSocketPath and serves in the background. Requests
// are cancelled when ctx is done.
func (s *Server) Start(ctx context.Context, unixSocketPath string) error {
	// A stale socket from a previous run would make Listen fail.
	if err := os.Remove(unixSocketPath); err != nil && !os.IsNotExist(err) {
		return pkgerrors.Wrapf(err, "failed to remove stale socket %s", unixSocketPath)
	}

	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", unixSocketPath)
	}

	s.srv = &http.Server{
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("http server stopped: %v", err)
		}
	}()

	return nil
}

// Shutdown stops the server. Closing the listener removes the socket.
func (s *Server) Shutdown() {
	if s.srv == nil {
		return
	}

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
}
