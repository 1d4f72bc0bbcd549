package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vshulcz/devpoll/internal/misc"
)

// FromEnvOrFlag returns the environment value when present, otherwise falls back to a CLI flag then default.
func FromEnvOrFlag(envKey, flagVal, def string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	if v := strings.TrimSpace(flagVal); v != "" {
		return v
	}
	return def
}

// FromEnvOrFlagBool merges boolean values from ENV and flags (defaulting to def).
func FromEnvOrFlagBool(envKey string, flagVal, def bool) bool {
	if ev := strings.TrimSpace(os.Getenv(envKey)); ev != "" {
		return misc.GetBool(envKey, def)
	}
	if flagVal {
		return true
	}
	return def
}

// FromEnvOrFlagDuration resolves a duration written as an integer of unit or in Go syntax.
// Unlike the other helpers it reports malformed input instead of falling back.
func FromEnvOrFlagDuration(envKey, flagVal string, def, unit time.Duration) (time.Duration, error) {
	if ev := strings.TrimSpace(os.Getenv(envKey)); ev != "" {
		d, err := misc.ParseDuration(ev, unit)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", envKey, err)
		}
		return d, nil
	}
	if fv := strings.TrimSpace(flagVal); fv != "" {
		d, err := misc.ParseDuration(fv, unit)
		if err != nil {
			return 0, fmt.Errorf("flag for %s: %w", envKey, err)
		}
		return d, nil
	}
	return def, nil
}

func normalizeAddressURL(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return strings.TrimRight(s, "/")
	}
	if strings.HasPrefix(s, ":") {
		return "http://localhost" + s
	}
	return "http://" + strings.TrimRight(s, "/")
}
