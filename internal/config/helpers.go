package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vshulcz/Clashpulse/internal/misc"
)

// FromEnvOrFlag returns the environment value when present, otherwise falls back to a CLI flag then default.
func FromEnvOrFlag(envKey, flagVal, def string) string {
	if v := misc.Getenv(envKey, ""); v != "" {
		return v
	}
	if v := strings.TrimSpace(flagVal); v != "" {
		return v
	}
	return def
}

// FromEnvOrFlagInt resolves a size. Values below min, and unparsable
// environment values, fall through to the next source.
func FromEnvOrFlagInt(envKey string, flagVal, def, min int) int {
	if ev := misc.Getenv(envKey, ""); ev != "" {
		if n, err := strconv.Atoi(ev); err == nil && n >= min {
			return n
		}
	}
	if flagVal != 0 && flagVal >= min {
		return flagVal
	}
	return def
}

// FromEnvOrFlagSeconds resolves an interval. The flag counts whole seconds
// and equals unset when it was not given. The environment also accepts Go
// duration syntax; a value that parses as neither is an error.
func FromEnvOrFlagSeconds(envKey string, flagSeconds, unset int, def time.Duration) (time.Duration, error) {
	if ev := strings.TrimSpace(os.Getenv(envKey)); ev != "" {
		d, err := misc.ParseSeconds(ev)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", envKey, err)
		}
		return d, nil
	}
	if flagSeconds != unset {
		return time.Duration(flagSeconds) * time.Second, nil
	}
	return def, nil
}
