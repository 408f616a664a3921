package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	config, err := Load("")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if config.Addr() != "127.0.0.1:9000" {
		t.Errorf("Expected default address, got %s", config.Addr())
	}
	if config.Ollama.URL != "http://localhost:11434" || config.Ollama.KeepAlive != "10m" {
		t.Errorf("Unexpected ollama defaults: %+v", config.Ollama)
	}
	if config.Worker.RequestTimeout != 0 {
		t.Errorf("Expected request timeout disabled by default, got %s", config.Worker.RequestTimeout)
	}
	if config.History.Limit != 6 || config.History.Path != "caption-history.db" {
		t.Errorf("Unexpected history defaults: %+v", config.History)
	}
	if config.Image.MaxSize != 1024 || config.Image.ThumbnailSize != 96 || config.Image.MaxUploadBytes != 10<<20 || config.Image.MaxPixels != 50_000_000 {
		t.Errorf("Unexpected image defaults: %+v", config.Image)
	}
	if config.Backend.GPU != "auto" {
		t.Errorf("Expected backend.gpu auto, got %s", config.Backend.GPU)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := `
server:
  port: "9100"
  apiKey: secret
ollama:
  model: llava
worker:
  requestTimeout: 30s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("CAPTION_OLLAMA_URL", "http://gpu-box:11434")
	t.Setenv("CAPTION_BACKEND_GPU", "off")

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if config.Server.Port != "9100" || config.Server.Host != "127.0.0.1" {
		t.Errorf("Expected file port with default host, got %+v", config.Server)
	}
	if config.Server.ApiKey != "secret" {
		t.Errorf("Expected api key from file, got %q", config.Server.ApiKey)
	}
	if config.Ollama.Model != "llava" || config.Ollama.URL != "http://gpu-box:11434" {
		t.Errorf("Unexpected ollama config: %+v", config.Ollama)
	}
	if config.Backend.GPU != "off" {
		t.Errorf("Expected env override, got %s", config.Backend.GPU)
	}
	if config.Worker.RequestTimeout != 30*time.Second {
		t.Errorf("Expected 30s, got %s", config.Worker.RequestTimeout)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
