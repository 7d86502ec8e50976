// Package config loads the kernel's startup configuration, grounded on
// the teacher's internal/config/loader.go (env-var expansion via
// os.ExpandEnv, YAML decoding with unknown-field rejection) trimmed
// from the teacher's large multi-channel/plugin config surface down to
// the handful of external collaborators spec.md §6 names: every field
// here is read once at startup, never reloaded.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the kernel's full startup configuration (spec.md §6's
// "Environment variables" list plus the handful of tunables the ambient
// stack needs -- HTTP address, retry/timeout overrides).
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	SessionStoreURL string `yaml:"session_store_url"`

	LLM struct {
		AnthropicAPIKey string `yaml:"anthropic_api_key"`
		AnthropicModel  string `yaml:"anthropic_model"`
		OpenAIAPIKey    string `yaml:"openai_api_key"`
		OpenAIModel     string `yaml:"openai_model"`
	} `yaml:"llm"`

	Backend struct {
		APIURL       string `yaml:"api_url"`
		ServiceToken string `yaml:"service_token"`
	} `yaml:"backend"`

	ObjectStore struct {
		URL       string `yaml:"url"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
	} `yaml:"object_store"`

	CreditLedger struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
	} `yaml:"credit_ledger"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DefaultListenAddr matches the teacher's gateway default of binding to
// all interfaces on a fixed port rather than an ephemeral one.
const DefaultListenAddr = ":8080"

// Load reads a YAML config file (if path is non-empty), expanding
// ${VAR}/$VAR references against the process environment first, then
// fills any remaining gaps from environment variables named in spec.md
// §6 directly. A .env file in the working directory is loaded first
// (ignored if absent), matching the teacher's godotenv bootstrap.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{ListenAddr: DefaultListenAddr}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		expanded := os.ExpandEnv(string(data))
		decoder := yaml.NewDecoder(strings.NewReader(expanded))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvFallbacks(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvFallbacks(cfg *Config) {
	setIfEmpty(&cfg.SessionStoreURL, "SESSION_STORE_URL")
	setIfEmpty(&cfg.LLM.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setIfEmpty(&cfg.LLM.OpenAIAPIKey, "OPENAI_API_KEY")
	setIfEmpty(&cfg.Backend.APIURL, "BACKEND_API_URL")
	setIfEmpty(&cfg.Backend.ServiceToken, "BACKEND_SERVICE_TOKEN")
	setIfEmpty(&cfg.ObjectStore.URL, "OBJECT_STORE_URL")
	setIfEmpty(&cfg.ObjectStore.AccessKey, "OBJECT_STORE_ACCESS_KEY")
	setIfEmpty(&cfg.ObjectStore.SecretKey, "OBJECT_STORE_SECRET_KEY")
	setIfEmpty(&cfg.CreditLedger.URL, "CREDIT_LEDGER_URL")
	setIfEmpty(&cfg.CreditLedger.Token, "CREDIT_LEDGER_TOKEN")
}

func setIfEmpty(field *string, envVar string) {
	if *field != "" {
		return
	}
	if v := os.Getenv(envVar); v != "" {
		*field = v
	}
}

func (c *Config) validate() error {
	if c.Backend.APIURL == "" {
		return fmt.Errorf("config: backend.api_url (or BACKEND_API_URL) is required")
	}
	if c.CreditLedger.URL == "" {
		return fmt.Errorf("config: credit_ledger.url (or CREDIT_LEDGER_URL) is required")
	}
	if c.LLM.AnthropicAPIKey == "" && c.LLM.OpenAIAPIKey == "" {
		return fmt.Errorf("config: at least one of llm.anthropic_api_key or llm.openai_api_key (or their env vars) is required")
	}
	return nil
}
