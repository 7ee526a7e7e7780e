package config

import (
	"testing"
	"time"

	"github.com/nalgeon/be"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "ENV", "GMAIL_TOKEN_FILE", "CALL_TIMEOUT_SEC", "SNOOZE_LABEL", "SEND_TIME_ZONE", "WORKER_ID", "SCHEDULER_WORKERS", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	be.Err(t, err, nil)
	be.Equal(t, cfg.Port, "8000")
	be.Equal(t, cfg.GmailTokenFile, "token.json")
	be.Equal(t, cfg.GmailUser, "me")
	be.Equal(t, cfg.CallTimeout, 30*time.Second)
	be.Equal(t, cfg.SnoozeLabel, "Snoozed")
	be.Equal(t, cfg.SendLocation, time.Local)
	be.Equal(t, cfg.SchedulerWorkers, 4)
	be.True(t, cfg.NodeID >= 0 && cfg.NodeID <= 1023)
	be.True(t, cfg.IsDevelopment())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CALL_TIMEOUT_SEC", "5")
	t.Setenv("SEND_TIME_ZONE", "UTC")
	t.Setenv("WORKER_ID", "12")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	be.Err(t, err, nil)
	be.Equal(t, cfg.Port, "9000")
	be.Equal(t, cfg.CallTimeout, 5*time.Second)
	be.Equal(t, cfg.SendLocation, time.UTC)
	be.Equal(t, cfg.NodeID, int64(12))
	be.Equal(t, cfg.AllowedOrigins, []string{"https://a.example", "https://b.example"})
	be.True(t, cfg.IsProduction())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown zone", "SEND_TIME_ZONE", "Mars/Olympus"},
		{"node too large", "WORKER_ID", "5000"},
		{"zero timeout", "CALL_TIMEOUT_SEC", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			be.Err(t, err)
		})
	}
}
