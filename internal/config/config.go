package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/n8nbridge/internal/logging"
	"github.com/aretw0/n8nbridge/pkg/relay"
)

// Environment variables recognized by ApplyEnv.
const (
	EnvWebhookURL     = "N8N_WEBHOOK_URL"
	EnvWebhookToken   = "N8N_WEBHOOK_TOKEN"
	EnvWebhookTimeout = "N8N_WEBHOOK_TIMEOUT_MS"
	EnvRelayOrigin    = "N8N_RELAY_ORIGIN"
	EnvMCPEndpoint    = "XIAOZHI_MCP_ENDPOINT"
	EnvMCPToken       = "XIAOZHI_MCP_TOKEN"
	EnvLogLevel       = "N8NBRIDGE_LOG_LEVEL"
)

// Transports understood by the mcp command.
const (
	TransportStdio     = "stdio"
	TransportSSE       = "sse"
	TransportWebsocket = "websocket"
)

const (
	DefaultServerName  = "n8n-mcp-bridge"
	DefaultMCPEndpoint = "wss://api.xiaozhi.me/mcp/"
	DefaultPort        = 8080
)

// Config is the whole process configuration. It is built once at startup and then
// only read.
type Config struct {
	Relay RelayConfig `yaml:"relay" json:"relay"`
	MCP   MCPConfig   `yaml:"mcp" json:"mcp"`
	HTTP  HTTPConfig  `yaml:"http" json:"http"`
	Log   LogConfig   `yaml:"log" json:"log"`
}

// RelayConfig describes the webhook the relay posts to.
type RelayConfig struct {
	EndpointURL string `yaml:"endpoint_url" json:"endpoint_url"`
	AuthToken   string `yaml:"auth_token" json:"auth_token"`
	TimeoutMs   int    `yaml:"timeout_ms" json:"timeout_ms"`
	Origin      string `yaml:"origin" json:"origin"`
}

// MCPConfig selects and configures the MCP transport.
type MCPConfig struct {
	ServerName string `yaml:"server_name" json:"server_name"`
	Transport  string `yaml:"transport" json:"transport"`
	Endpoint   string `yaml:"endpoint" json:"endpoint"`
	Token      string `yaml:"token" json:"token"`
	Port       int    `yaml:"port" json:"port"`
}

// HTTPConfig configures the plain HTTP API.
type HTTPConfig struct {
	Port int `yaml:"port" json:"port"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the configuration used when nothing else is supplied.
// There is no default webhook: an unconfigured relay fails each invocation instead.
func Default() Config {
	return Config{
		Relay: RelayConfig{
			TimeoutMs: int(relay.DefaultTimeout / time.Millisecond),
			Origin:    relay.DefaultOrigin,
		},
		MCP: MCPConfig{
			ServerName: DefaultServerName,
			Transport:  TransportStdio,
			Endpoint:   DefaultMCPEndpoint,
			Port:       DefaultPort,
		},
		HTTP: HTTPConfig{Port: DefaultPort},
		Log:  LogConfig{Level: "info"},
	}
}

// Load reads the optional config file, the optional .env file next to the working
// directory, and then the environment. Later sources win.
func Load(path string) (Config, error) {
	cfg, err := FromFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := LoadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return cfg.ApplyEnv(os.LookupEnv)
}

// FromFile reads a YAML or JSON file over Default(). A missing file is not an error.
func FromFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given files without overriding the ones already
// set in the environment. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables found through lookup.
func (c Config) ApplyEnv(lookup func(string) (string, bool)) (Config, error) {
	if v, ok := lookup(EnvWebhookURL); ok {
		c.Relay.EndpointURL = v
	}
	if v, ok := lookup(EnvWebhookToken); ok {
		c.Relay.AuthToken = v
	}
	if v, ok := lookup(EnvWebhookTimeout); ok && v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvWebhookTimeout, err)
		}
		c.Relay.TimeoutMs = ms
	}
	if v, ok := lookup(EnvRelayOrigin); ok && v != "" {
		c.Relay.Origin = v
	}
	if v, ok := lookup(EnvMCPEndpoint); ok && v != "" {
		c.MCP.Endpoint = v
	}
	if v, ok := lookup(EnvMCPToken); ok {
		c.MCP.Token = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	return c, nil
}

// Validate checks the settings every command depends on. A missing webhook URL is not
// an error here; the relay reports it per invocation.
func (c Config) Validate() error {
	if c.Relay.TimeoutMs < 0 {
		return fmt.Errorf("relay.timeout_ms must not be negative, got %d", c.Relay.TimeoutMs)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// ValidateTransport checks the MCP section for the selected transport.
func (c Config) ValidateTransport() error {
	switch c.MCP.Transport {
	case TransportStdio, TransportSSE:
	case TransportWebsocket:
		if strings.TrimSpace(c.MCP.Token) == "" {
			return fmt.Errorf("mcp.token (or %s) is required for the websocket transport", EnvMCPToken)
		}
	default:
		return fmt.Errorf("unknown transport %q (supported: stdio, sse, websocket)", c.MCP.Transport)
	}
	return nil
}

// RelayConfig converts the relay section into the relay package's form.
func (c Config) RelayConfig() relay.Config {
	return relay.Config{
		EndpointURL: c.Relay.EndpointURL,
		AuthToken:   c.Relay.AuthToken,
		Timeout:     time.Duration(c.Relay.TimeoutMs) * time.Millisecond,
		Origin:      c.Relay.Origin,
	}
}
