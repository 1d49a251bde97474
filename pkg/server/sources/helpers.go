package sources

import (
	"fmt"
	"strconv"
	"time"

	"github.com/StrathCole/oracle-priority/pkg/logging"
)

// GetLoggerFromConfig extracts logger from config map or returns a default noop logger.
// Readers use this to get the logger passed from main.go.
func GetLoggerFromConfig(config map[string]interface{}) *logging.Logger {
	if loggerInterface, ok := config["logger"]; ok {
		if logger, ok := loggerInterface.(*logging.Logger); ok && logger != nil {
			return logger
		}
	}

	return logging.NewNoopLogger()
}

// GetString returns config[key] as a string, or defaultVal when absent.
func GetString(config map[string]interface{}, key, defaultVal string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return defaultVal
}

// GetInt returns config[key] as an int. YAML decodes numbers as int, JSON as float64.
func GetInt(config map[string]interface{}, key string, defaultVal int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v) // #nosec G115 -- config values are small
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// GetFloat returns config[key] as a float64.
func GetFloat(config map[string]interface{}, key string, defaultVal float64) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// GetDuration accepts a Go duration string ("30s") or a number of seconds.
func GetDuration(config map[string]interface{}, key string, defaultVal time.Duration) (time.Duration, error) {
	switch v := config[key].(type) {
	case nil:
		return defaultVal, nil
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("%w: %s has type %T", ErrInvalidConfig, key, v)
	}
}
