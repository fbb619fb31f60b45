package resilience

import (
	"time"

	"jobsieve/internal/config"
)

// Settings are the per-source knobs shared by the limiter, backoff, and
// breaker.
type Settings struct {
	RequestsPerMinute  float64
	Burst              int
	MaxRetries         int
	BackoffBase        time.Duration
	BackoffMax         time.Duration
	FailureThreshold   int
	Cooldown           time.Duration
	CooldownMultiplier float64
	MaxCooldown        time.Duration
}

// SettingsFromConfig converts merged configuration into Settings.
func SettingsFromConfig(r config.Resilience) Settings {
	return Settings{
		RequestsPerMinute:  r.RequestsPerMinute,
		Burst:              r.Burst,
		MaxRetries:         r.MaxRetries,
		BackoffBase:        time.Duration(r.BackoffBaseMillis) * time.Millisecond,
		BackoffMax:         time.Duration(r.BackoffMaxMillis) * time.Millisecond,
		FailureThreshold:   r.FailureThreshold,
		Cooldown:           time.Duration(r.CooldownSeconds) * time.Second,
		CooldownMultiplier: r.CooldownMultiplier,
		MaxCooldown:        time.Duration(r.MaxCooldownSeconds) * time.Second,
	}
}

func (s Settings) withDefaults() Settings {
	if s.RequestsPerMinute <= 0 {
		s.RequestsPerMinute = 30
	}
	if s.Burst <= 0 {
		s.Burst = 1
	}
	if s.MaxRetries < 0 {
		s.MaxRetries = 0
	}
	if s.BackoffBase <= 0 {
		s.BackoffBase = 500 * time.Millisecond
	}
	if s.BackoffMax < s.BackoffBase {
		s.BackoffMax = s.BackoffBase
	}
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 5 * time.Minute
	}
	if s.CooldownMultiplier < 1 {
		s.CooldownMultiplier = 1
	}
	if s.MaxCooldown < s.Cooldown {
		s.MaxCooldown = s.Cooldown
	}
	return s
}
