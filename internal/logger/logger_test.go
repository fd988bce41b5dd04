package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"KabuSentinel/internal/config"
)

func TestInit_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.log")
	l, err := Init(config.LogConfig{Level: "info", FilePath: path, MaxSize: 1})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer zap.ReplaceGlobals(zap.NewNop())

	zap.L().Info("scan finished", zap.Int("hits", 3))
	zap.L().Debug("hidden below info")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"scan finished"`) || !strings.Contains(out, `"hits":3`) {
		t.Errorf("log file missing entry: %s", out)
	}
	if strings.Contains(out, "hidden below info") {
		t.Error("debug entry should be filtered at info level")
	}
}

func TestInit_BadLevel(t *testing.T) {
	if _, err := Init(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
