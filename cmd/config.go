// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML config file layout. Every field is optional and
// only used when the matching flag was not given.
type fileConfig struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	URL         string        `yaml:"url"`
	Username    string        `yaml:"username"`
	NoSSLVerify bool          `yaml:"no_ssl_verify"`
	Timeout     time.Duration `yaml:"timeout"`
	Capacity    int           `yaml:"capacity"`
	LogLevel    string        `yaml:"log_level"`

	Send struct {
		Settle       time.Duration `yaml:"settle"`
		HandshakeGap time.Duration `yaml:"handshake_gap"`
	} `yaml:"send"`

	Device struct {
		Image           string        `yaml:"image"`
		EchoDiagnostics bool          `yaml:"echo_diagnostics"`
		RealisticTiming bool          `yaml:"realistic_timing"`
		ReceiveTimeout  time.Duration `yaml:"receive_timeout"`
	} `yaml:"device"`
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// applyConfig copies config file values into flags the user left unset
func applyConfig(cmd *cobra.Command) error {
	if configPath == "" {
		return nil
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	values := map[string]string{
		"port":             cfg.Port,
		"url":              cfg.URL,
		"username":         cfg.Username,
		"log-level":        cfg.LogLevel,
		"image":            cfg.Device.Image,
		"baud":             nonZero(cfg.Baud),
		"capacity":         nonZero(cfg.Capacity),
		"timeout":          nonZeroDuration(cfg.Timeout),
		"settle":           nonZeroDuration(cfg.Send.Settle),
		"handshake-gap":    nonZeroDuration(cfg.Send.HandshakeGap),
		"receive-timeout":  nonZeroDuration(cfg.Device.ReceiveTimeout),
		"no-ssl-verify":    trueOnly(cfg.NoSSLVerify),
		"echo-diagnostics": trueOnly(cfg.Device.EchoDiagnostics),
		"realistic-timing": trueOnly(cfg.Device.RealisticTiming),
	}
	for name, value := range values {
		if value == "" {
			continue
		}
		if err := setUnchanged(flags, name, value); err != nil {
			return fmt.Errorf("config %s: %w", name, err)
		}
	}
	return nil
}

// setUnchanged sets a flag only if it exists on this command and was not
// given on the command line
func setUnchanged(flags *pflag.FlagSet, name, value string) error {
	f := flags.Lookup(name)
	if f == nil || f.Changed {
		return nil
	}
	return f.Value.Set(value)
}

func nonZero(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprint(n)
}

func nonZeroDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func trueOnly(b bool) string {
	if !b {
		return ""
	}
	return "true"
}
