// Package config resolves the run parameters of a hot path load test from
// the environment (and an optional config file) into an immutable RunConfig.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"hotpath/internal/stats"
)

// Environment keys. viper upper-cases them for the env lookup.
const (
	KeyBaseURL          = "base_url"
	KeyChatBaseURL      = "chat_base_url"
	KeySessionBaseURL   = "session_base_url"
	KeyOrgHubBaseURL    = "orghub_base_url"
	KeyTenantHubBaseURL = "tenanthub_base_url"
	KeyTenantID         = "tenant_id"
	KeyEmail            = "smoke_email"
	KeyPassword         = "smoke_password"
	KeyVUs              = "k6_vus"
	KeyDuration         = "k6_duration"
	KeySleepMs          = "k6_sleep_ms"
	KeyHTTPTimeout      = "http_timeout"
	KeyGracefulStop     = "k6_graceful_stop"
	KeyMessageTemplate  = "message_template"
	KeyThresholds       = "thresholds"
)

const (
	DefaultChatBaseURL      = "http://localhost:8080"
	DefaultSessionBaseURL   = "http://localhost:8090"
	DefaultOrgHubBaseURL    = "http://localhost:8091"
	DefaultTenantHubBaseURL = "http://localhost:8092"
	DefaultTenantID         = "default"
	DefaultEmail            = "admin@example.com"
	DefaultPassword         = "pass1234"
	DefaultVUs              = "200"
	DefaultDuration         = "10m"
	DefaultSleepMs          = "200"
	DefaultGracefulStop     = "30s"
)

// RunConfig is built once at startup and never mutated.
type RunConfig struct {
	ChatBaseURL      string
	SessionBaseURL   string
	OrgHubBaseURL    string
	TenantHubBaseURL string

	TenantID string
	Email    string
	Password string

	VUs      int
	Duration time.Duration
	Sleep    time.Duration

	// Zero leaves the HTTP client without an explicit timeout.
	HTTPTimeout time.Duration
	// GracefulStop is how long in-flight calls may run once load stops.
	GracefulStop time.Duration

	MessageTemplate string
	Thresholds      []stats.Threshold
}

// Defaults are the scenario-specific values a RunConfig falls back to.
type Defaults struct {
	MessageTemplate string
	Thresholds      map[string][]string
}

// NewViper returns a viper instance wired to the process environment with
// every documented default registered.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(KeySessionBaseURL, DefaultSessionBaseURL)
	v.SetDefault(KeyOrgHubBaseURL, DefaultOrgHubBaseURL)
	v.SetDefault(KeyTenantHubBaseURL, DefaultTenantHubBaseURL)
	v.SetDefault(KeyTenantID, DefaultTenantID)
	v.SetDefault(KeyEmail, DefaultEmail)
	v.SetDefault(KeyPassword, DefaultPassword)
	v.SetDefault(KeyVUs, DefaultVUs)
	v.SetDefault(KeyDuration, DefaultDuration)
	v.SetDefault(KeySleepMs, DefaultSleepMs)
	v.SetDefault(KeyHTTPTimeout, "0")
	v.SetDefault(KeyGracefulStop, DefaultGracefulStop)
	return v
}

// Load resolves a RunConfig. Malformed numbers and durations are errors,
// never silently replaced by defaults.
func Load(v *viper.Viper, d Defaults) (RunConfig, error) {
	cfg := RunConfig{
		ChatBaseURL:      chatBaseURL(v),
		SessionBaseURL:   trimURL(v.GetString(KeySessionBaseURL)),
		OrgHubBaseURL:    trimURL(v.GetString(KeyOrgHubBaseURL)),
		TenantHubBaseURL: trimURL(v.GetString(KeyTenantHubBaseURL)),
		TenantID:         v.GetString(KeyTenantID),
		Email:            v.GetString(KeyEmail),
		Password:         v.GetString(KeyPassword),
		MessageTemplate:  d.MessageTemplate,
	}
	if tmpl := v.GetString(KeyMessageTemplate); tmpl != "" {
		cfg.MessageTemplate = tmpl
	}

	vus, err := strconv.Atoi(strings.TrimSpace(v.GetString(KeyVUs)))
	if err != nil {
		return RunConfig{}, fmt.Errorf("K6_VUS: %w", err)
	}
	if vus < 1 {
		return RunConfig{}, fmt.Errorf("K6_VUS: must be at least 1, got %d", vus)
	}
	cfg.VUs = vus

	dur, err := parseDuration(v.GetString(KeyDuration))
	if err != nil {
		return RunConfig{}, fmt.Errorf("K6_DURATION: %w", err)
	}
	if dur <= 0 {
		return RunConfig{}, fmt.Errorf("K6_DURATION: must be positive, got %s", dur)
	}
	cfg.Duration = dur

	sleepMs, err := strconv.Atoi(strings.TrimSpace(v.GetString(KeySleepMs)))
	if err != nil {
		return RunConfig{}, fmt.Errorf("K6_SLEEP_MS: %w", err)
	}
	if sleepMs < 0 {
		return RunConfig{}, fmt.Errorf("K6_SLEEP_MS: must not be negative, got %d", sleepMs)
	}
	cfg.Sleep = time.Duration(sleepMs) * time.Millisecond

	timeout, err := parseDuration(v.GetString(KeyHTTPTimeout))
	if err != nil {
		return RunConfig{}, fmt.Errorf("HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	grace, err := parseDuration(v.GetString(KeyGracefulStop))
	if err != nil {
		return RunConfig{}, fmt.Errorf("K6_GRACEFUL_STOP: %w", err)
	}
	if grace < 0 {
		return RunConfig{}, fmt.Errorf("K6_GRACEFUL_STOP: must not be negative, got %s", grace)
	}
	cfg.GracefulStop = grace

	thresholds, err := stats.ParseThresholds(mergeThresholds(d.Thresholds, v.GetStringMapStringSlice(KeyThresholds)))
	if err != nil {
		return RunConfig{}, fmt.Errorf("thresholds: %w", err)
	}
	cfg.Thresholds = thresholds

	return cfg, nil
}

// CHAT_BASE_URL wins over BASE_URL; the single-service script only knew BASE_URL.
func chatBaseURL(v *viper.Viper) string {
	if u := v.GetString(KeyChatBaseURL); u != "" {
		return trimURL(u)
	}
	if u := v.GetString(KeyBaseURL); u != "" {
		return trimURL(u)
	}
	return DefaultChatBaseURL
}

func trimURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// parseDuration accepts Go duration strings ("10m", "1h30m") and bare
// integers as seconds.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

// Configured metrics replace the default expressions for that metric only.
func mergeThresholds(defaults, configured map[string][]string) map[string][]string {
	out := make(map[string][]string, len(defaults)+len(configured))
	for metric, exprs := range defaults {
		out[metric] = append([]string(nil), exprs...)
	}
	for metric, exprs := range configured {
		out[metric] = append([]string(nil), exprs...)
	}
	return out
}
