package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Safe type assertion helpers for the free-form "config" object of a node.

// DecodeNodeConfig decodes a node's raw config into a map. Empty input yields
// an empty map.
func DecodeNodeConfig(raw json.RawMessage) (map[string]any, error) {
	cfg := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode node config: %w", err)
	}
	return cfg, nil
}

// GetString safely extracts a string value from a config map
func GetString(cfg map[string]any, key string, defaultVal string) string {
	if val, ok := cfg[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultVal
}

// GetInt safely extracts an integer value from a config map
func GetInt(cfg map[string]any, key string, defaultVal int) int {
	if val, ok := cfg[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return defaultVal
}

// GetBool safely extracts a boolean value from a config map
func GetBool(cfg map[string]any, key string, defaultVal bool) bool {
	if val, ok := cfg[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetDuration extracts a duration given as a string ("1s", "2d") or as
// nanoseconds.
func GetDuration(cfg map[string]any, key string, defaultVal time.Duration) time.Duration {
	val, ok := cfg[key]
	if !ok {
		return defaultVal
	}
	switch v := val.(type) {
	case string:
		if d, err := parseDurationWithDays(v); err == nil {
			return d
		}
	case float64:
		return time.Duration(int64(v))
	case int64:
		return time.Duration(v)
	}
	return defaultVal
}
