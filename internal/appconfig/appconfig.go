// Package appconfig loads process configuration the way the retrieval
// pack's agent CLIs do: cobra owns the command surface and flag
// definitions, viper layers config file / environment variable / flag
// values on top of compiled-in defaults, and the result is bound into a
// single typed Config struct the rest of the process consumes.
package appconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// StoreBackend selects the storekit.Store[T] implementation every
// registry and manager is constructed with.
type StoreBackend string

const (
	StoreMemory   StoreBackend = "memory"
	StorePostgres StoreBackend = "postgres"
)

// LLMProvider selects the default chat client; the other provider is
// wired in behind it as the fallback when its API key is configured.
type LLMProvider string

const (
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderOpenAI LLMProvider = "openai"
)

type ChannelCredentials struct {
	WhatsAppDeviceStorePath string `mapstructure:"whatsapp_device_store_path"`
	TelegramBotToken        string `mapstructure:"telegram_bot_token"`
	InstagramPageID         string `mapstructure:"instagram_page_id"`
	InstagramAccessToken    string `mapstructure:"instagram_access_token"`
	InstagramVerifyToken    string `mapstructure:"instagram_verify_token"`
}

type BroadcastRateLimits struct {
	WhatsApp  int `mapstructure:"whatsapp"`
	Telegram  int `mapstructure:"telegram"`
	Instagram int `mapstructure:"instagram"`
	Web       int `mapstructure:"web"`
}

// Config is the fully resolved process configuration, bound from
// defaults, an optional config file, CONVOYD_-prefixed environment
// variables, and CLI flags, in ascending precedence.
type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`

	StoreBackend  StoreBackend `mapstructure:"store_backend"`
	PostgresDSN   string       `mapstructure:"postgres_dsn"`
	MemoryDataDir string       `mapstructure:"memory_data_dir"`

	LLMProvider      LLMProvider `mapstructure:"llm_provider"`
	ClaudeAPIKey     string      `mapstructure:"claude_api_key"`
	ClaudeModel      string      `mapstructure:"claude_model"`
	OpenAIAPIKey     string      `mapstructure:"openai_api_key"`
	OpenAIModel      string      `mapstructure:"openai_model"`
	RouterConfidence float64     `mapstructure:"router_confidence_threshold"`

	KnowledgeRoot string `mapstructure:"knowledge_root"`
	CompanyName   string `mapstructure:"company_name"`
	ToneOfVoice   string `mapstructure:"tone_of_voice"`

	MaxContextTokens int `mapstructure:"max_context_tokens"`

	Channels  ChannelCredentials  `mapstructure:"channels"`
	RateLimit BroadcastRateLimits `mapstructure:"broadcast_rate_limit"`

	ScheduledPollInterval time.Duration `mapstructure:"scheduled_poll_interval"`
}

// Defaults mirrors spec.md's literal defaults so a deployment with no
// config file or flags still behaves per spec.
func Defaults() Config {
	return Config{
		HTTPAddr:              ":8080",
		StoreBackend:          StoreMemory,
		MemoryDataDir:         "./data",
		LLMProvider:           LLMProviderClaude,
		ClaudeModel:           "claude-sonnet-4-5",
		OpenAIModel:           "gpt-4o",
		RouterConfidence:      0.6,
		CompanyName:           "Acme",
		ToneOfVoice:           "friendly and professional",
		MaxContextTokens:      50000,
		ScheduledPollInterval: time.Minute,
		RateLimit: BroadcastRateLimits{
			WhatsApp:  80,
			Telegram:  30,
			Instagram: 20,
			Web:       100,
		},
	}
}

// BindFlags registers the flags shared by every subcommand onto cmd and
// binds them into v, so the precedence chain ends at the flag value when
// one is passed.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	defaults := Defaults()

	cmd.PersistentFlags().String("http-addr", defaults.HTTPAddr, "address the HTTP server listens on")
	cmd.PersistentFlags().String("store-backend", string(defaults.StoreBackend), "storage backend: memory or postgres")
	cmd.PersistentFlags().String("postgres-dsn", "", "postgres connection string, required when store-backend=postgres")
	cmd.PersistentFlags().String("memory-data-dir", defaults.MemoryDataDir, "directory memory-backed stores persist JSON snapshots to")
	cmd.PersistentFlags().String("llm-provider", string(defaults.LLMProvider), "default LLM provider: claude or openai")
	cmd.PersistentFlags().String("claude-api-key", "", "Anthropic API key")
	cmd.PersistentFlags().String("claude-model", defaults.ClaudeModel, "Claude model id")
	cmd.PersistentFlags().String("openai-api-key", "", "OpenAI API key")
	cmd.PersistentFlags().String("openai-model", defaults.OpenAIModel, "OpenAI model id")
	cmd.PersistentFlags().Float64("router-confidence-threshold", defaults.RouterConfidence, "router confidence threshold (loaded into config only; the router uses its fixed 0.6 threshold)")
	cmd.PersistentFlags().String("knowledge-root", "", "filesystem root of the knowledge corpus")
	cmd.PersistentFlags().String("company-name", defaults.CompanyName, "company name substituted into persona prompts")
	cmd.PersistentFlags().String("tone-of-voice", defaults.ToneOfVoice, "tone of voice substituted into persona prompts")
	cmd.PersistentFlags().Int("max-context-tokens", defaults.MaxContextTokens, "token budget for the context window builder")
	cmd.PersistentFlags().Duration("scheduled-poll-interval", defaults.ScheduledPollInterval, "how often the trigger scheduler checks cron-scheduled flows")

	// Flag names use dashes by CLI convention; config keys use underscores
	// to match the mapstructure tags Unmarshal binds against. BindPFlag
	// per-flag keeps the two in step instead of relying on BindPFlags'
	// verbatim (dash-preserving) key names.
	bindings := map[string]string{
		"http-addr":                    "http_addr",
		"store-backend":                "store_backend",
		"postgres-dsn":                 "postgres_dsn",
		"memory-data-dir":              "memory_data_dir",
		"llm-provider":                 "llm_provider",
		"claude-api-key":               "claude_api_key",
		"claude-model":                 "claude_model",
		"openai-api-key":               "openai_api_key",
		"openai-model":                 "openai_model",
		"router-confidence-threshold":  "router_confidence_threshold",
		"knowledge-root":               "knowledge_root",
		"company-name":                 "company_name",
		"tone-of-voice":                "tone_of_voice",
		"max-context-tokens":           "max_context_tokens",
		"scheduled-poll-interval":      "scheduled_poll_interval",
	}
	for flagName, key := range bindings {
		if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(flagName)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flagName, err)
		}
	}
	return nil
}

// Load resolves v's precedence chain (flags > env > config file >
// compiled defaults) into a Config.
func Load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix("convoyd")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	defaults := Defaults()
	v.SetDefault("http_addr", defaults.HTTPAddr)
	v.SetDefault("store_backend", defaults.StoreBackend)
	v.SetDefault("memory_data_dir", defaults.MemoryDataDir)
	v.SetDefault("llm_provider", defaults.LLMProvider)
	v.SetDefault("claude_model", defaults.ClaudeModel)
	v.SetDefault("openai_model", defaults.OpenAIModel)
	v.SetDefault("router_confidence_threshold", defaults.RouterConfidence)
	v.SetDefault("company_name", defaults.CompanyName)
	v.SetDefault("tone_of_voice", defaults.ToneOfVoice)
	v.SetDefault("max_context_tokens", defaults.MaxContextTokens)
	v.SetDefault("scheduled_poll_interval", defaults.ScheduledPollInterval)
	v.SetDefault("broadcast_rate_limit.whatsapp", defaults.RateLimit.WhatsApp)
	v.SetDefault("broadcast_rate_limit.telegram", defaults.RateLimit.Telegram)
	v.SetDefault("broadcast_rate_limit.instagram", defaults.RateLimit.Instagram)
	v.SetDefault("broadcast_rate_limit.web", defaults.RateLimit.Web)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.StoreBackend == StorePostgres && cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("store-backend=postgres requires postgres-dsn")
	}

	return cfg, nil
}
