package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadLocalConfigGeneratesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("CHATFORGE_CONFIG_PATH", path)

	_, err := LoadLocalConfig()
	if err == nil {
		t.Fatal("expected error prompting the user to edit the template")
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Errorf("template should have been written: %v", statErr)
	}
}

func TestLoadLocalConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `server:
  port: 9090
  host: "0.0.0.0"
chat:
  system_prompt: "be kind"
  request_timeout: 30s
providers:
  openai:
    api_key: "sk-test"
  azure-openai:
    api_key: "az"
    endpoint: "https://res.openai.azure.com"
    api_version: "2024-02-01"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHATFORGE_CONFIG_PATH", path)

	cfg, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig failed: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server config wrong: %+v", cfg.Server)
	}
	if cfg.Chat.SystemPrompt != "be kind" {
		t.Errorf("system prompt wrong: %q", cfg.Chat.SystemPrompt)
	}
	if cfg.Chat.RequestTimeout != 30*time.Second {
		t.Errorf("timeout wrong: %v", cfg.Chat.RequestTimeout)
	}
	if cfg.DataDir == "" {
		t.Error("data dir should default")
	}

	cred := cfg.Providers["openai"].Credential()
	if cred.APIKey != "sk-test" || !cred.Bare {
		t.Errorf("plain api_key entry should be a bare credential: %+v", cred)
	}
	azure := cfg.Providers["azure-openai"].Credential()
	if azure.Bare || azure.Endpoint == "" || azure.APIVersion == "" {
		t.Errorf("structured entry should keep its fields: %+v", azure)
	}
}

func TestLoadLocalConfigDefaultTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHATFORGE_CONFIG_PATH", path)

	cfg, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig failed: %v", err)
	}
	if cfg.Chat.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("expected default timeout, got %v", cfg.Chat.RequestTimeout)
	}
}
