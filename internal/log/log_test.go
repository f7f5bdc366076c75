package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSONLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, "debug")
	l.Info().Str("component", "chain").Uint64("index", 7).Msg("Block sealed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["message"] != "Block sealed" || entry["component"] != "chain" || entry["index"] != float64(7) {
		t.Errorf("unexpected entry: %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry should carry a timestamp")
	}
}

func TestNewJSONLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, "error")
	l.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("info line written at error level: %s", buf.String())
	}
}

func TestInit_ComponentLoggers(t *testing.T) {
	if err := Init("error", true, ""); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Chain.GetLevel() != zerolog.ErrorLevel {
		t.Errorf("Chain level = %v, want error", Chain.GetLevel())
	}
}

func TestInit_File(t *testing.T) {
	path := t.TempDir() + "/node.log"
	if err := Init("error", true, path); err != nil {
		t.Fatalf("Init with file: %v", err)
	}
	if err := Init("error", false, t.TempDir()+"/missing/dir/node.log"); err == nil {
		t.Error("Init should fail for an unwritable path")
	}
}
