package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	maxConfigSize = 10 << 20 // 10MB max config file size
	maxJSONDepth  = 64       // Maximum JSON nesting depth
	maxEnvVarLen  = 10000    // Maximum environment variable value length
	maxPathLen    = 4096     // Maximum file path length
)

// EnvPrefix is the prefix of environment variables read by ApplyEnvOverrides.
const EnvPrefix = "SEMFLOW"

// ApplyEnvOverrides overlays PREFIX_NATS_URL, PREFIX_NATS_PREFIX,
// PREFIX_LOG_LEVEL, PREFIX_LOG_FORMAT and PREFIX_METRICS_PORT on cfg.
func ApplyEnvOverrides(cfg *Config, prefix string) error {
	lookup := func(name string) (string, bool, error) {
		key := prefix + "_" + name
		val := os.Getenv(key)
		if val == "" {
			return "", false, nil
		}
		if err := validateEnvVar(key, val); err != nil {
			return "", false, err
		}
		return val, true, nil
	}

	if val, ok, err := lookup("NATS_URL"); err != nil {
		return err
	} else if ok {
		cfg.NATS.URL = val
	}
	if val, ok, err := lookup("NATS_PREFIX"); err != nil {
		return err
	} else if ok {
		cfg.NATS.Prefix = val
	}
	if val, ok, err := lookup("LOG_LEVEL"); err != nil {
		return err
	} else if ok {
		cfg.Log.Level = strings.ToLower(val)
	}
	if val, ok, err := lookup("LOG_FORMAT"); err != nil {
		return err
	} else if ok {
		cfg.Log.Format = strings.ToLower(val)
	}
	if val, ok, err := lookup("METRICS_PORT"); err != nil {
		return err
	} else if ok {
		port, err := strconv.Atoi(val)
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("invalid %s_METRICS_PORT %q", prefix, val)
		}
		cfg.Metrics.Port = port
		cfg.Metrics.Enabled = port > 0
	}
	return nil
}

// validateEnvVar does basic environment variable validation
func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("environment variable %s too long: %d > %d", key, len(value), maxEnvVarLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("null byte in environment variable %s", key)
	}
	return nil
}

// validateJSONDepth checks JSON depth to prevent DoS attacks
func validateJSONDepth(data []byte) error {
	depth := 0
	inString := false
	escaped := false

	for _, b := range data {
		if escaped {
			escaped = false
			continue
		}
		if b == '\\' && inString {
			escaped = true
			continue
		}
		if b == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch b {
		case '{', '[':
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("JSON nesting too deep: %d > %d", depth, maxJSONDepth)
			}
		case '}', ']':
			depth--
			if depth < 0 {
				return errors.New("malformed JSON: unbalanced brackets")
			}
		}
	}

	if depth != 0 {
		return fmt.Errorf("malformed JSON: unclosed brackets (depth=%d)", depth)
	}
	return nil
}
