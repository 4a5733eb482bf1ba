package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestHelpersAreNoOpsBeforeInit(t *testing.T) {
	Logger = nil
	Info("ignored")
	Warn("ignored")
	Error("ignored", "err", "x")
	Debug("ignored")
	WithPrefix("tracker").Info("ignored")
}

func TestSetOutputAndLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, log.InfoLevel)
	t.Cleanup(func() { Logger = nil })

	Debug("hidden")
	Info("fetched feed", "count", 5)
	WithPrefix("beacon").Warn("flush failed")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %s", out)
	}
	if !strings.Contains(out, "fetched feed") || !strings.Contains(out, "count=5") {
		t.Errorf("info line missing: %s", out)
	}
	if !strings.Contains(out, "beacon") || !strings.Contains(out, "flush failed") {
		t.Errorf("prefixed line missing: %s", out)
	}
}

func TestInitWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir, "test"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("hello from test")
	Close()

	matches, _ := filepath.Glob(filepath.Join(dir, "logs", "thinktok-*.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one log file, got %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"ThinkTok started", "hello from test", "ThinkTok shutting down"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log missing %q:\n%s", want, data)
		}
	}
}
