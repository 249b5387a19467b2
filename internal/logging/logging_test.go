package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetupWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := SetupWriter(&buf, "warn", "json"); err != nil {
		t.Fatalf("SetupWriter() error = %v, want nil", err)
	}
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Info().Msg("hidden")
	log.Warn().Str("rule", "R1").Msg("rejected")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("log lines = %d, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, want nil", err)
	}
	if entry["level"] != "warn" || entry["rule"] != "R1" || entry["message"] != "rejected" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Errorf("entry has no timestamp: %v", entry)
	}
}

func TestSetupWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := SetupWriter(&buf, "info", "text"); err != nil {
		t.Fatalf("SetupWriter() error = %v, want nil", err)
	}
	log.Info().Msg("compiled")
	if !strings.Contains(buf.String(), "compiled") || strings.HasPrefix(buf.String(), "{") {
		t.Errorf("console output = %q", buf.String())
	}
}

func TestSetupWriter_Invalid(t *testing.T) {
	var buf bytes.Buffer
	if err := SetupWriter(&buf, "loud", "json"); err == nil {
		t.Errorf("SetupWriter(level=loud) error = nil, want error")
	}
	if err := SetupWriter(&buf, "info", "xml"); err == nil {
		t.Errorf("SetupWriter(format=xml) error = nil, want error")
	}
}
