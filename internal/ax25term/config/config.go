// Package config holds the engine's tunable knobs as a single record,
// per the teacher's DESIGN NOTES guidance ("Retry and timer knobs...
// Express as a configuration record... not scattered constants"),
// loadable from YAML via gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors the Link state tunables of spec §3.
type Config struct {
	// N2 is the retry counter ceiling, clamped to 1..10 by /retries.
	N2 int `yaml:"n2"`

	// T1Ms is the retransmit/ack timer, default 4000.
	T1Ms int `yaml:"t1_ms"`

	// T3Ms is the idle keepalive timer, default 180000.
	T3Ms int `yaml:"t3_ms"`

	// WindowK is the outstanding-window size, default 4, max 7.
	WindowK int `yaml:"window_k"`

	// LineTerminator is appended to plain-text lines sent as I-frame
	// payloads: "\r" by default, "\r\n" when /crlf is toggled on.
	LineTerminator string `yaml:"line_terminator"`

	// Host/Port address the KISS TCP TNC, default 127.0.0.1:8001.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// FRMRFatal follows spec §9's Open Question: FRMR is fatal to the
	// link by default; set false to keep the link and reset V(S)/V(R)/V(A)
	// and the unacked queue instead.
	FRMRFatal bool `yaml:"frmr_fatal"`
}

// Default returns the spec §3 defaults.
func Default() Config {
	return Config{
		N2:             3,
		T1Ms:           4000,
		T3Ms:           180000,
		WindowK:        4,
		LineTerminator: "\r",
		Host:           "127.0.0.1",
		Port:           8001,
		FRMRFatal:      true,
	}
}

func (c Config) T1() time.Duration { return time.Duration(c.T1Ms) * time.Millisecond }
func (c Config) T3() time.Duration { return time.Duration(c.T3Ms) * time.Millisecond }

// Load reads a YAML config file, starting from Default() so unspecified
// fields keep their defaults.
func Load(path string) (Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate enforces the clamps named in spec §6 (/retries N clamped 1..10)
// and §3 (window_k max 7).
func (c Config) Validate() error {
	if c.N2 < 1 || c.N2 > 10 {
		return fmt.Errorf("config: n2 must be 1..10, got %d", c.N2)
	}
	if c.WindowK < 1 || c.WindowK > 7 {
		return fmt.Errorf("config: window_k must be 1..7, got %d", c.WindowK)
	}
	if c.LineTerminator != "\r" && c.LineTerminator != "\r\n" {
		return fmt.Errorf("config: line_terminator must be \\r or \\r\\n")
	}
	return nil
}

// WithRetries returns a copy with N2 clamped to 1..10, for the /retries
// command.
func (c Config) WithRetries(n int) Config {
	if n < 1 {
		n = 1
	} else if n > 10 {
		n = 10
	}
	c.N2 = n
	return c
}
