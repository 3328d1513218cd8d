package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"chatforge/internal/models"
)

// Config represents the root configuration structure
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Chat      ChatConfig                `yaml:"chat"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	DataDir   string                    `yaml:"data_dir"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// ChatConfig configures generation behaviour
type ChatConfig struct {
	SystemPrompt string `yaml:"system_prompt"`
	// RequestTimeout bounds each upstream provider request end to end.
	// There is no automatic retry; a failed request surfaces to the user.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ProviderConfig configures a specific upstream provider
type ProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Endpoint     string `yaml:"endpoint"`
	APIVersion   string `yaml:"api_version"`
	Organization string `yaml:"organization"`
}

// Credential converts the YAML provider entry into the credential shape the
// registry consumes. Entries with only an api_key stay bare strings.
func (p ProviderConfig) Credential() models.CredentialValue {
	bare := p.Endpoint == "" && p.APIVersion == "" && p.Organization == "" && p.BaseURL == ""
	return models.CredentialValue{
		APIKey:       p.APIKey,
		Endpoint:     p.Endpoint,
		APIVersion:   p.APIVersion,
		Organization: p.Organization,
		BaseURL:      p.BaseURL,
		Bare:         bare,
	}
}

const DefaultRequestTimeout = 120 * time.Second

const DefaultConfigTemplate = `server:
  port: 8080
  host: "127.0.0.1"
chat:
  system_prompt: ""
  request_timeout: 120s
providers:
  openrouter:
    api_key: "sk-or-..."
  openai:
    api_key: "sk-..."
  anthropic:
    api_key: "sk-ant-..."
  google:
    api_key: "AIza..."
  azure-openai:
    api_key: "..."
    endpoint: "https://your-resource.openai.azure.com"
    api_version: "2024-02-01"
`

// LoadLocalConfig loads configuration from CHATFORGE_CONFIG_PATH or ~/.config/chatforge/config.yaml
// If the configuration file doesn't exist, it creates a template for the user.
func LoadLocalConfig() (*Config, error) {
	configPath := os.Getenv("CHATFORGE_CONFIG_PATH")
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "chatforge", "config.yaml")
	}

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Printf("Config file missing at %s, creating default template...", configPath)
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate), 0644); err != nil {
			return nil, fmt.Errorf("failed to write default config template: %w", err)
		}
		return nil, fmt.Errorf("generated default config at %s. Please update it and restart", configPath)
	}

	// Read and parse
	f, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse yaml config: %w", err)
	}

	if conf.Chat.RequestTimeout == 0 {
		conf.Chat.RequestTimeout = DefaultRequestTimeout
	}
	if conf.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		conf.DataDir = filepath.Join(home, ".local", "share", "chatforge")
	}

	return &conf, nil
}
