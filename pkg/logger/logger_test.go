package logger_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/parley-chat/server/pkg/logger"
)

func captureStdOut(fn func()) string {
	orig := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() {
		os.Stdout = orig
	}()

	fn()

	_ = w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	_ = r.Close()
	return buf.String()
}

func TestInit_DevStd_TextOutPut(t *testing.T) {
	cfg := logger.Config{
		Service:   "demo",
		Version:   "v0.0.1",
		Env:       logger.EnvDev,
		Backend:   logger.BackendStd,
		Level:     slog.LevelDebug,
		AddSource: true,
	}

	out := captureStdOut(func() {
		logger.Init(cfg)
		slog.Info("Hello world")
	})

	// Txt handler
	if strings.Contains(out, "{") && strings.Contains(out, "}") {
		t.Fatalf("expected text output in dev/std, got JSON: %s", out)
	}
	if !strings.Contains(out, "Hello world") {
		t.Fatalf("message missing: %s", out)
	}
	if !strings.Contains(out, "service=demo") {
		t.Fatalf("service attr missing: %s", out)
	}
	if !strings.Contains(out, "env=dev") {
		t.Fatalf("env attr missing: %s", out)
	}
}

func TestInit_ProdZap_JSONOutPut(t *testing.T) {
	cfg := logger.Config{
		Service:          "demo",
		Version:          "1.2.3",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		Level:            slog.LevelInfo,
		SampleInitial:    100000,
		SampleThereafter: 100000,
	}

	out := captureStdOut(func() {
		logger.Init(cfg)
		slog.Info("booted", slog.String("k", "v"))
	})

	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("expected JSON line, got %s, err=%v", out, err)
	}

	if m["msg"] != "booted" {
		t.Fatalf("msg mismatch: %v", m["msg"])
	}
	if m["service"] != "demo" || m["env"] != "prod" || m["version"] != "1.2.3" {
		t.Fatalf("attrs missing: service=%v env=%v version=%v", m["service"], m["env"], m["version"])
	}
	if m["level"] != "INFO" {
		t.Fatalf("level mismatch: %v", m["level"])
	}
	if m["k"] != "v" {
		t.Fatalf("custom field missing: %v", m["k"])
	}
}

func TestDetectEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	if got := logger.DetectEnv(); got != logger.EnvDev {
		t.Fatalf("default should be dev, got %q", got)
	}

	t.Setenv("APP_ENV", "stage")
	if got := logger.DetectEnv(); got != logger.EnvStage {
		t.Fatalf("expected stage, got %q", got)
	}

	t.Setenv("APP_ENV", "prod")
	if got := logger.DetectEnv(); got != logger.EnvProd {
		t.Fatalf("expected prod, got %q", got)
	}
}
