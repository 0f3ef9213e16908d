package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/waybar-battery/pkg/config"
	"github.com/charlie0129/waybar-battery/pkg/status"
	"github.com/charlie0129/waybar-battery/pkg/version"
)

func (s *Server) getStatus(c *gin.Context) {
	st, ok := s.loop.Last()
	if !ok {
		err := errors.New("no status emitted yet")
		c.IndentedJSON(http.StatusServiceUnavailable, err.Error())
		_ = c.AbortWithError(http.StatusServiceUnavailable, err)
		return
	}

	c.IndentedJSON(http.StatusOK, st)
}

func (s *Server) getRecentEvents(c *gin.Context) {
	r := s.loop.Recorder()
	c.IndentedJSON(http.StatusOK, status.Activity{
		Records:  r.GetRecordsString(),
		LastHour: r.GetRecordsIn(time.Hour),
		Last:     r.GetLastRecord(),
	})
}

func (s *Server) getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(s.conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func (s *Server) setLowThreshold(c *gin.Context) {
	var v float64
	if err := c.BindJSON(&v); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := config.CheckThresholds(s.conf.CriticalThreshold(), v); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	s.conf.SetLowThreshold(v)
	if !s.saveConfig(c) {
		return
	}

	logrus.Infof("set low threshold to %v", v)
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set low threshold to %s", status.PercentageString(v)))
}

func (s *Server) setCriticalThreshold(c *gin.Context) {
	var v float64
	if err := c.BindJSON(&v); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := config.CheckThresholds(v, s.conf.LowThreshold()); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	s.conf.SetCriticalThreshold(v)
	if !s.saveConfig(c) {
		return
	}

	logrus.Infof("set critical threshold to %v", v)
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set critical threshold to %s", status.PercentageString(v)))
}

func (s *Server) setNotifications(c *gin.Context) {
	var enabled bool
	if err := c.BindJSON(&enabled); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	s.conf.SetNotifications(enabled)
	if !s.saveConfig(c) {
		return
	}

	logrus.Infof("set notifications to %t", enabled)
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set notifications to %t", enabled))
}

// saveConfig writes the config back to its file. It responds with the error
// and returns false if that fails.
func (s *Server) saveConfig(c *gin.Context) bool {
	if err := s.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return false
	}
	return true
}

func (s *Server) streamEvents(c *gin.Context) {
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	ctx := c.Request.Context()
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		}
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
