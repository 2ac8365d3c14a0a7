package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Run modes.
const (
	RunModeSchedule = "schedule"
	RunModeOnce     = "once"
)

const (
	envListenAddr = "TABLESNAP_LISTEN_ADDR"
	envLogLevel   = "TABLESNAP_LOG_LEVEL"
	envRunMode    = "TABLESNAP_RUN_MODE"
	envEnvFile    = "TABLESNAP_ENV_FILE"
	envAlertURL   = "TABLESNAP_ALERT_WEBHOOK_URL"
)

// settingsSchema declares the process-level settings.
var settingsSchema = Schema{
	WithDefault("listen_addr", envListenAddr, KindString, ":8080"),
	WithDefault("log_level", envLogLevel, KindString, "info"),
	WithDefault("run_mode", envRunMode, KindString, RunModeSchedule),
	WithDefault("env_file", envEnvFile, KindString, ".env"),
	Optional("alert_webhook_url", envAlertURL, KindString),
}

// Settings holds process configuration resolved from the environment.
type Settings struct {
	ListenAddr string
	LogLevel   slog.Level
	RunMode    string
	EnvFile    string

	// AlertWebhookURL receives failure events when set.
	AlertWebhookURL string
}

// Load resolves process settings from env.
func Load(env Environment) (Settings, error) {
	r, err := Resolve(settingsSchema, env, nil)
	if err != nil {
		return Settings{}, err
	}

	s := Settings{
		ListenAddr: r.String("listen_addr"),
		LogLevel:   parseLogLevel(r.String("log_level")),
		RunMode:    strings.ToLower(r.String("run_mode")),
		EnvFile:    r.String("env_file"),

		AlertWebhookURL: r.String("alert_webhook_url"),
	}
	if s.RunMode != RunModeSchedule && s.RunMode != RunModeOnce {
		return Settings{}, &InvalidError{
			Field: "run_mode",
			Value: s.RunMode,
			Kind:  KindString,
			Err:   fmt.Errorf("want %q or %q", RunModeSchedule, RunModeOnce),
		}
	}
	return s, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
