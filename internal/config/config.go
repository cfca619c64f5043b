// Package config loads noise.yaml, applies NOISE_* environment overrides and
// validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/noise/internal/connection"
	"github.com/alexanderramin/noise/internal/llm"
	"github.com/alexanderramin/noise/internal/search"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Discord    DiscordConfig    `yaml:"discord"`
	Store      StoreConfig      `yaml:"store"`
	LLM        LLMConfig        `yaml:"llm"`
	Search     SearchConfig     `yaml:"search"`
	Connection ConnectionConfig `yaml:"connection"`
	Recommend  RecommendConfig  `yaml:"recommend"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`

	ShutdownGrace time.Duration `yaml:"shutdown_grace" validate:"gt=0"`
}

type DiscordConfig struct {
	Token string `yaml:"token"`
}

type StoreConfig struct {
	Backend string `yaml:"backend" validate:"oneof=sqlite file"`
	Path    string `yaml:"path" validate:"required"`
}

type LLMConfig struct {
	Provider   string `yaml:"provider" validate:"oneof=gemini ollama"`
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Model      string `yaml:"model"`
	EmbedModel string `yaml:"embed_model"`

	GenerateTimeout time.Duration `yaml:"generate_timeout" validate:"gt=0"`
	EmbedTimeout    time.Duration `yaml:"embed_timeout" validate:"gt=0"`
}

type SearchConfig struct {
	APIKey   string        `yaml:"api_key"`
	EngineID string        `yaml:"engine_id"`
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
}

type ConnectionConfig struct {
	Keywords         []string `yaml:"keywords" validate:"dive,required"`
	BaseProbability  float64  `yaml:"base_probability" validate:"min=0,max=1"`
	KeywordStart     float64  `yaml:"keyword_start" validate:"min=0,max=1"`
	KeywordStep      float64  `yaml:"keyword_step" validate:"min=0,max=1"`
	ForcedWeightStep float64  `yaml:"forced_weight_step" validate:"min=0"`
	ForcedWeightCap  float64  `yaml:"forced_weight_cap" validate:"min=0"`
	BandMin          float64  `yaml:"band_min" validate:"min=-1,max=1"`
	BandMax          float64  `yaml:"band_max" validate:"min=-1,max=1,gtefield=BandMin"`

	// Seed fixes the random source; 0 seeds from the clock.
	Seed uint64 `yaml:"seed"`
}

type RecommendConfig struct {
	Tick                time.Duration `yaml:"tick" validate:"gt=0"`
	HistoryWindow       int           `yaml:"history_window" validate:"min=1"`
	QueryCount          int           `yaml:"query_count" validate:"min=1,max=10"`
	ResultCap           int           `yaml:"result_cap" validate:"min=1"`
	DefaultIntervalDays int           `yaml:"default_interval_days" validate:"min=1"`
}

type MetricsConfig struct {
	// Addr is the listen address; empty disables the metrics server.
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cs := connection.DefaultSettings()
	return Config{
		Store: StoreConfig{Backend: "sqlite", Path: "data/noise.db"},
		LLM: LLMConfig{
			Provider:        llm.ProviderGemini,
			Model:           "gemini-flash-latest",
			EmbedModel:      "text-embedding-004",
			GenerateTimeout: 10 * time.Second,
			EmbedTimeout:    5 * time.Second,
		},
		Search: SearchConfig{Timeout: 8 * time.Second},
		Connection: ConnectionConfig{
			Keywords:         cs.Keywords,
			BaseProbability:  cs.BaseProbability,
			KeywordStart:     cs.KeywordStart,
			KeywordStep:      cs.KeywordStep,
			ForcedWeightStep: cs.ForcedWeightStep,
			ForcedWeightCap:  cs.ForcedWeightCap,
			BandMin:          cs.BandMin,
			BandMax:          cs.BandMax,
		},
		Recommend: RecommendConfig{
			Tick:                time.Hour,
			HistoryWindow:       20,
			QueryCount:          3,
			ResultCap:           3,
			DefaultIntervalDays: 3,
		},
		Log:           LogConfig{Level: "info"},
		ShutdownGrace: 10 * time.Second,
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides and validates. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	envString("NOISE_DISCORD_TOKEN", &cfg.Discord.Token)
	envString("NOISE_GEMINI_API_KEY", &cfg.LLM.APIKey)
	envString("NOISE_LLM_PROVIDER", &cfg.LLM.Provider)
	envString("NOISE_LLM_ENDPOINT", &cfg.LLM.Endpoint)
	envString("NOISE_SEARCH_API_KEY", &cfg.Search.APIKey)
	envString("NOISE_SEARCH_ENGINE_ID", &cfg.Search.EngineID)
	envString("NOISE_STORE_PATH", &cfg.Store.Path)
	envString("NOISE_STORE_BACKEND", &cfg.Store.Backend)
	envString("NOISE_METRICS_ADDR", &cfg.Metrics.Addr)
	envString("NOISE_LOG_LEVEL", &cfg.Log.Level)

	if v := os.Getenv("NOISE_BASE_PROBABILITY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: NOISE_BASE_PROBABILITY=%q", ErrInvalid, v)
		}
		cfg.Connection.BaseProbability = f
	}
	if v := os.Getenv("NOISE_TICK"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: NOISE_TICK=%q", ErrInvalid, v)
		}
		cfg.Recommend.Tick = d
	}
	return nil
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Settings converts the connection section into live matcher settings.
func (c ConnectionConfig) Settings() connection.Settings {
	return connection.Settings{
		Keywords:         append([]string(nil), c.Keywords...),
		BaseProbability:  c.BaseProbability,
		KeywordStart:     c.KeywordStart,
		KeywordStep:      c.KeywordStep,
		ForcedWeightStep: c.ForcedWeightStep,
		ForcedWeightCap:  c.ForcedWeightCap,
		BandMin:          c.BandMin,
		BandMax:          c.BandMax,
	}
}

// Client converts the llm section into a client config. An ollama provider
// without explicit models gets the local defaults.
func (c LLMConfig) Client() llm.LLMConfig {
	out := llm.DefaultConfig()
	out.Provider = c.Provider
	out.APIKey = c.APIKey
	if c.Endpoint != "" {
		out.Endpoint = c.Endpoint
	}
	model, embedModel := c.Model, c.EmbedModel
	if c.Provider == llm.ProviderOllama {
		defModel, defEmbed := llm.DefaultOllamaModels()
		if model == "" || model == out.Model {
			model = defModel
		}
		if embedModel == "" || embedModel == out.EmbedModel {
			embedModel = defEmbed
		}
	}
	if model != "" {
		out.Model = model
	}
	if embedModel != "" {
		out.EmbedModel = embedModel
	}
	out.TimeoutMs = int(c.GenerateTimeout.Milliseconds())
	out.SetTaskTimeout(llm.TaskNarrative, int(c.GenerateTimeout.Milliseconds()))
	out.SetTaskTimeout(llm.TaskQueryPlan, int(c.GenerateTimeout.Milliseconds()))
	out.SetTaskTimeout(llm.TaskEmbed, int(c.EmbedTimeout.Milliseconds()))
	return out
}

// Client converts the search section into a search client config.
func (c SearchConfig) Client() search.Config {
	return search.Config{
		APIKey:   c.APIKey,
		EngineID: c.EngineID,
		Endpoint: c.Endpoint,
		Timeout:  c.Timeout,
	}
}
