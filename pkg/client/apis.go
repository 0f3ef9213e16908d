package client

import (
	"encoding/json"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/waybar-battery/pkg/config"
	"github.com/charlie0129/waybar-battery/pkg/status"
)

func (c *Client) SetLowThreshold(v float64) (string, error) {
	return c.Put("/low-threshold", strconv.FormatFloat(v, 'f', -1, 64))
}

func (c *Client) SetCriticalThreshold(v float64) (string, error) {
	return c.Put("/critical-threshold", strconv.FormatFloat(v, 'f', -1, 64))
}

func (c *Client) SetNotifications(enabled bool) (string, error) {
	return c.Put("/notifications", strconv.FormatBool(enabled))
}

func (c *Client) GetStatus() (*status.Report, error) {
	ret, err := c.Get("/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get status")
	}

	var r status.Report
	if err := json.Unmarshal([]byte(ret), &r); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal status")
	}

	return &r, nil
}

func (c *Client) GetRecentEvents() (*status.Activity, error) {
	ret, err := c.Get("/recent-events")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get recent events")
	}

	var a status.Activity
	if err := json.Unmarshal([]byte(ret), &a); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal recent events")
	}

	return &a, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}

	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal version")
	}
	return v, nil
}
