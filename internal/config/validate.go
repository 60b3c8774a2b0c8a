package config

import (
	"errors"
	"fmt"
	"strings"
)

// StateBackends lists the supported snapshot backends.
var StateBackends = []string{"json", "sqlite", "pebble"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateSettings(); err != nil {
		return err
	}
	if err := c.validateState(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputRoot) == "" {
		return errors.New("paths.output_root must be set")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if err := ensurePositiveMap(map[string]int{
		"encoder.probe_timeout_seconds":    c.Encoder.ProbeTimeoutSeconds,
		"encoder.liveness_timeout_seconds": c.Encoder.LivenessTimeoutSeconds,
		"encoder.grace_period_seconds":     c.Encoder.GracePeriodSeconds,
	}); err != nil {
		return err
	}
	if c.Encoder.LivenessTimeoutSeconds <= c.Encoder.GracePeriodSeconds {
		return errors.New("encoder.liveness_timeout_seconds must be greater than encoder.grace_period_seconds")
	}
	return nil
}

func (c *Config) validateSettings() error {
	if c.Settings.CRF < 0 || c.Settings.CRF > 51 {
		return fmt.Errorf("settings.crf must be between 0 and 51, got %d", c.Settings.CRF)
	}
	return nil
}

func (c *Config) validateState() error {
	for _, backend := range StateBackends {
		if c.State.Backend == backend {
			return nil
		}
	}
	return fmt.Errorf("state.backend: unsupported value %q (use one of %s)", c.State.Backend, strings.Join(StateBackends, ", "))
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
