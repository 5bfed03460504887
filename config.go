package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

// AppConfig holds all server configuration.
// Priority (lowest → highest): defaults < env vars < JSON config file < CLI flags.
type AppConfig struct {
	// Server
	Store         string `json:"store" env:"STORE"`                   // sqlite | redis
	DB            string `json:"db" env:"DB"`                         // sqlite connection string
	RedisURL      string `json:"redis_url" env:"REDIS_URL"`           // redis://host:port/db
	Dev           bool   `json:"dev" env:"DEV"`                       // dev mode: verbose logging, state dumps on errors
	Addr          string `json:"addr" env:"ADDR"`                     // HTTP listen address
	ModeratorCode string `json:"moderator_code" env:"MODERATOR_CODE"` // login code; generated when empty

	// Cleanup of finished games
	PruneSchedule     string `json:"prune_schedule" env:"PRUNE_SCHEDULE"`         // cron spec, empty disables
	FinishedRetention string `json:"finished_retention" env:"FINISHED_RETENTION"` // Go duration

	// Logging (extended diagnostics, off by default)
	LogOutputDir string `json:"log_output_dir" env:"LOG_OUTPUT_DIR"`
	LogRequests  bool   `json:"log_requests" env:"LOG_REQUESTS"`
	LogState     bool   `json:"log_state" env:"LOG_STATE"`
	LogDB        bool   `json:"log_db" env:"LOG_DB"`
	LogWS        bool   `json:"log_ws" env:"LOG_WS"`
	LogDebug     bool   `json:"log_debug" env:"LOG_DEBUG"`

	// AI Storyteller
	StorytellerProvider    string `json:"storyteller_provider" env:"STORYTELLER_PROVIDER"`       // ollama | openai | claude | gemini | groq | openai-compatible
	StorytellerModel       string `json:"storyteller_model" env:"STORYTELLER_MODEL"`             // model name
	StorytellerOllamaURL   string `json:"storyteller_ollama_url" env:"STORYTELLER_OLLAMA_URL"`   // Ollama server URL
	StorytellerURL         string `json:"storyteller_url" env:"STORYTELLER_URL"`                 // base URL for openai-compatible
	StorytellerAPIKey      string `json:"storyteller_api_key" env:"STORYTELLER_API_KEY"`         // API key for openai-compatible
	StorytellerTemperature string `json:"storyteller_temperature" env:"STORYTELLER_TEMPERATURE"` // float 0-1 as string
	StorytellerThinking    string `json:"storyteller_thinking" env:"STORYTELLER_THINKING"`       // none | low | medium | high | auto
	GroqAPIKey             string `json:"groq_api_key" env:"GROQ_API_KEY"`                       // API key for groq provider
}

func (cfg AppConfig) toLogConfig() LogConfig {
	return LogConfig{
		OutputDir:   cfg.LogOutputDir,
		LogRequests: cfg.LogRequests,
		LogState:    cfg.LogState,
		LogDB:       cfg.LogDB,
		LogWS:       cfg.LogWS,
		Debug:       cfg.LogDebug,
	}
}

func defaultConfig() AppConfig {
	return AppConfig{
		Store:                "sqlite",
		DB:                   "file:wolfed.db?cache=shared",
		RedisURL:             "redis://localhost:6379/0",
		Addr:                 ":8080",
		PruneSchedule:        "@hourly",
		FinishedRetention:    "24h",
		StorytellerOllamaURL: "http://localhost:11434",
	}
}

// loadConfig builds a config by layering: defaults → env vars → JSON config file.
// CLI flag overrides are applied separately by flagValues.applyTo.
func loadConfig(configPath string) (AppConfig, error) {
	cfg := defaultConfig()

	// Layer 1: env vars; unset variables leave the defaults alone
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	// Layer 2: JSON config file: only fields present in the file override env vars
	if data, err := os.ReadFile(configPath); err == nil {
		var overlay map[string]json.RawMessage
		if err := json.Unmarshal(data, &overlay); err != nil {
			log.Printf("Config: failed to parse %s: %v", configPath, err)
		} else {
			applyJSONOverlay(&cfg, overlay)
			log.Printf("Config: loaded from %s", configPath)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Config: failed to read %s: %v", configPath, err)
	}

	return cfg, nil
}

// applyJSONOverlay only sets fields that are explicitly present in the JSON map.
func applyJSONOverlay(cfg *AppConfig, m map[string]json.RawMessage) {
	str := func(key string, dst *string) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	str("store", &cfg.Store)
	str("db", &cfg.DB)
	str("redis_url", &cfg.RedisURL)
	boolean("dev", &cfg.Dev)
	str("addr", &cfg.Addr)
	str("moderator_code", &cfg.ModeratorCode)
	str("prune_schedule", &cfg.PruneSchedule)
	str("finished_retention", &cfg.FinishedRetention)
	str("log_output_dir", &cfg.LogOutputDir)
	boolean("log_requests", &cfg.LogRequests)
	boolean("log_state", &cfg.LogState)
	boolean("log_db", &cfg.LogDB)
	boolean("log_ws", &cfg.LogWS)
	boolean("log_debug", &cfg.LogDebug)
	str("storyteller_provider", &cfg.StorytellerProvider)
	str("storyteller_model", &cfg.StorytellerModel)
	str("storyteller_ollama_url", &cfg.StorytellerOllamaURL)
	str("storyteller_url", &cfg.StorytellerURL)
	str("storyteller_api_key", &cfg.StorytellerAPIKey)
	str("storyteller_temperature", &cfg.StorytellerTemperature)
	str("storyteller_thinking", &cfg.StorytellerThinking)
	str("groq_api_key", &cfg.GroqAPIKey)
}

// flagValues holds pointers to all registered CLI flags.
type flagValues struct {
	fs                     *pflag.FlagSet
	configPath             *string
	store                  *string
	db                     *string
	redisURL               *string
	dev                    *bool
	addr                   *string
	moderatorCode          *string
	pruneSchedule          *string
	finishedRetention      *string
	logOutputDir           *string
	logRequests            *bool
	logState               *bool
	logDB                  *bool
	logWS                  *bool
	logDebug               *bool
	storytellerProvider    *string
	storytellerModel       *string
	storytellerOllamaURL   *string
	storytellerURL         *string
	storytellerAPIKey      *string
	storytellerTemperature *string
	storytellerThinking    *string
	groqAPIKey             *string
}

// registerFlags registers all server flags on fs and returns pointers to their values.
// After parsing, call applyTo to layer them over the loaded config.
func registerFlags(fs *pflag.FlagSet) flagValues {
	return flagValues{
		fs:                     fs,
		configPath:             fs.String("config", "config.json", "path to JSON config file"),
		store:                  fs.String("store", "", "snapshot store (sqlite|redis)"),
		db:                     fs.String("db", "", "sqlite connection string"),
		redisURL:               fs.String("redis-url", "", "redis URL for the redis store"),
		dev:                    fs.Bool("dev", false, "enable development mode (verbose logging, state dumps on error)"),
		addr:                   fs.String("addr", "", "HTTP listen address (e.g. :8080)"),
		moderatorCode:          fs.String("moderator-code", "", "moderator login code (generated when empty)"),
		pruneSchedule:          fs.String("prune-schedule", "", "cron schedule for removing finished games"),
		finishedRetention:      fs.String("finished-retention", "", "how long finished games are kept (e.g. 24h)"),
		logOutputDir:           fs.String("log-output-dir", "", "directory for extended log files"),
		logRequests:            fs.Bool("log-requests", false, "log HTTP requests and responses"),
		logState:               fs.Bool("log-state", false, "log game state snapshots"),
		logDB:                  fs.Bool("log-db", false, "log database dumps"),
		logWS:                  fs.Bool("log-ws", false, "log WebSocket messages"),
		logDebug:               fs.Bool("log-debug", false, "enable debug logging"),
		storytellerProvider:    fs.String("storyteller-provider", "", "AI storyteller provider (ollama|openai|claude|gemini|groq|openai-compatible)"),
		storytellerModel:       fs.String("storyteller-model", "", "AI storyteller model name"),
		storytellerOllamaURL:   fs.String("storyteller-ollama-url", "", "Ollama server URL"),
		storytellerURL:         fs.String("storyteller-url", "", "base URL for openai-compatible provider"),
		storytellerAPIKey:      fs.String("storyteller-api-key", "", "API key for storyteller provider"),
		storytellerTemperature: fs.String("storyteller-temperature", "", "sampling temperature 0-1"),
		storytellerThinking:    fs.String("storyteller-thinking", "", "thinking mode: none|low|medium|high|auto"),
		groqAPIKey:             fs.String("groq-api-key", "", "Groq API key"),
	}
}

// applyTo overlays any CLI flags that were explicitly set onto cfg.
// Flags that were not passed on the command line are ignored (env/JSON values win).
func (fv flagValues) applyTo(cfg *AppConfig) {
	fv.fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "store":
			cfg.Store = *fv.store
		case "db":
			cfg.DB = *fv.db
		case "redis-url":
			cfg.RedisURL = *fv.redisURL
		case "dev":
			cfg.Dev = *fv.dev
		case "addr":
			cfg.Addr = *fv.addr
		case "moderator-code":
			cfg.ModeratorCode = *fv.moderatorCode
		case "prune-schedule":
			cfg.PruneSchedule = *fv.pruneSchedule
		case "finished-retention":
			cfg.FinishedRetention = *fv.finishedRetention
		case "log-output-dir":
			cfg.LogOutputDir = *fv.logOutputDir
		case "log-requests":
			cfg.LogRequests = *fv.logRequests
		case "log-state":
			cfg.LogState = *fv.logState
		case "log-db":
			cfg.LogDB = *fv.logDB
		case "log-ws":
			cfg.LogWS = *fv.logWS
		case "log-debug":
			cfg.LogDebug = *fv.logDebug
		case "storyteller-provider":
			cfg.StorytellerProvider = *fv.storytellerProvider
		case "storyteller-model":
			cfg.StorytellerModel = *fv.storytellerModel
		case "storyteller-ollama-url":
			cfg.StorytellerOllamaURL = *fv.storytellerOllamaURL
		case "storyteller-url":
			cfg.StorytellerURL = *fv.storytellerURL
		case "storyteller-api-key":
			cfg.StorytellerAPIKey = *fv.storytellerAPIKey
		case "storyteller-temperature":
			cfg.StorytellerTemperature = *fv.storytellerTemperature
		case "storyteller-thinking":
			cfg.StorytellerThinking = *fv.storytellerThinking
		case "groq-api-key":
			cfg.GroqAPIKey = *fv.groqAPIKey
		}
	})
}
