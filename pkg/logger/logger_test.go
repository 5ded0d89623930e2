package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init(WithFormat("yaml")); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat("json"), WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	ctx := context.Background()
	Named("gallery").With(String("course", "CS101")).Info(ctx, "refreshed",
		Int("size", 3),
		Bool("stale", false),
		Error(errors.New("boom")),
	)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if line["component"] != "gallery" {
		t.Errorf("expected component gallery, got %v", line["component"])
	}
	if line["course"] != "CS101" {
		t.Errorf("expected course CS101, got %v", line["course"])
	}
	if line["error"] != "boom" {
		t.Errorf("expected error boom, got %v", line["error"])
	}
	src, _ := line["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("expected caller in logger_test.go, got %q", src)
	}
}

func TestNamedChildren(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat("json"), WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	Named("service").With(String("node", "n1")).Named("gallery").Info(context.Background(), "refreshed")

	out := buf.String()
	if n := strings.Count(out, `"component"`); n != 1 {
		t.Fatalf("expected one component attribute, got %d in %q", n, out)
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, out)
	}
	if line["component"] != "service.gallery" {
		t.Errorf("expected component service.gallery, got %v", line["component"])
	}
	if line["node"] != "n1" {
		t.Errorf("expected node n1 to survive Named, got %v", line["node"])
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = SetLevelString("info")
		_ = Init()
	}()

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Get().Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}

	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
