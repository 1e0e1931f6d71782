package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks a loaded Config against its struct-tag constraints.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Transport.ListenAddr == "" && cfg.Transport.DialAddr == "" {
		return fmt.Errorf("invalid configuration: transport requires listen_addr, dial_addr, or both")
	}

	for _, rule := range cfg.Polyfill.Skip {
		if rule.Package == "" || rule.Interface == "" {
			return fmt.Errorf("invalid configuration: polyfill skip rule requires package and interface")
		}
	}

	return nil
}
