package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// EnvWorkflowExtractTimeout overrides the OCR call timeout.
	EnvWorkflowExtractTimeout = "WORKFLOW_EXTRACT_TIMEOUT"

	// EnvWorkflowVerifyTimeout overrides the government verification call timeout.
	EnvWorkflowVerifyTimeout = "WORKFLOW_VERIFY_TIMEOUT"

	// EnvWorkflowFraudTimeout overrides the fraud check call timeout.
	EnvWorkflowFraudTimeout = "WORKFLOW_FRAUD_TIMEOUT"

	// EnvWorkflowEventBufferSize overrides the per-subscriber event buffer.
	EnvWorkflowEventBufferSize = "WORKFLOW_EVENT_BUFFER_SIZE"
)

// WorkflowConfig bounds the workflow engine's external calls and event
// fanout.
type WorkflowConfig struct {
	ExtractTimeout  string `toml:"extract_timeout"`
	VerifyTimeout   string `toml:"verify_timeout"`
	FraudTimeout    string `toml:"fraud_timeout"`
	EventBufferSize int    `toml:"event_buffer_size"`
}

// ExtractTimeoutDuration parses and returns the OCR timeout.
func (c *WorkflowConfig) ExtractTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ExtractTimeout)
	return d
}

// VerifyTimeoutDuration parses and returns the verification timeout.
func (c *WorkflowConfig) VerifyTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.VerifyTimeout)
	return d
}

// FraudTimeoutDuration parses and returns the fraud check timeout.
func (c *WorkflowConfig) FraudTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.FraudTimeout)
	return d
}

// Finalize applies defaults, loads environment overrides, and validates the workflow configuration.
func (c *WorkflowConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *WorkflowConfig) Merge(overlay *WorkflowConfig) {
	if overlay.ExtractTimeout != "" {
		c.ExtractTimeout = overlay.ExtractTimeout
	}
	if overlay.VerifyTimeout != "" {
		c.VerifyTimeout = overlay.VerifyTimeout
	}
	if overlay.FraudTimeout != "" {
		c.FraudTimeout = overlay.FraudTimeout
	}
	if overlay.EventBufferSize != 0 {
		c.EventBufferSize = overlay.EventBufferSize
	}
}

func (c *WorkflowConfig) loadDefaults() {
	if c.ExtractTimeout == "" {
		c.ExtractTimeout = "120s"
	}
	if c.VerifyTimeout == "" {
		c.VerifyTimeout = "120s"
	}
	if c.FraudTimeout == "" {
		c.FraudTimeout = "120s"
	}
	if c.EventBufferSize == 0 {
		c.EventBufferSize = 16
	}
}

func (c *WorkflowConfig) loadEnv() {
	if v := os.Getenv(EnvWorkflowExtractTimeout); v != "" {
		c.ExtractTimeout = v
	}
	if v := os.Getenv(EnvWorkflowVerifyTimeout); v != "" {
		c.VerifyTimeout = v
	}
	if v := os.Getenv(EnvWorkflowFraudTimeout); v != "" {
		c.FraudTimeout = v
	}
	if v := os.Getenv(EnvWorkflowEventBufferSize); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			c.EventBufferSize = size
		}
	}
}

func (c *WorkflowConfig) validate() error {
	for name, value := range map[string]string{
		"extract_timeout": c.ExtractTimeout,
		"verify_timeout":  c.VerifyTimeout,
		"fraud_timeout":   c.FraudTimeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.EventBufferSize < 1 {
		return fmt.Errorf("event_buffer_size must be positive")
	}
	return nil
}
