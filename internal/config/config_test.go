package config

import (
	"log/slog"
	"testing"
	"time"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("bidash-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("profile = %q", cfg.Profile)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("http address = %q", cfg.HTTP.Address)
	}
	if cfg.Mongo.Database != "bi_dashboard" {
		t.Fatalf("mongo database = %q", cfg.Mongo.Database)
	}
	if cfg.Sampler.SampleSize != 100 {
		t.Fatalf("sample size = %d", cfg.Sampler.SampleSize)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Fatalf("llm provider = %q", cfg.LLM.Provider)
	}
	if cfg.Auth.Required {
		t.Fatal("auth should be disabled in dev")
	}
}

func TestLoadProfileOverrides(t *testing.T) {
	cfg, err := Load("bidash-api", mapLookup(map[string]string{
		"BIDASH_PROFILE": "prod",
	}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("auth should be required in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("log level = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadAppliesEnvValues(t *testing.T) {
	cfg, err := Load("bidash-api", mapLookup(map[string]string{
		"BIDASH_MONGO_URI":           "mongodb://db:27017",
		"BIDASH_MONGO_COLLECTION":    "transactions",
		"BIDASH_LLM_PROVIDER":        "openai",
		"BIDASH_LLM_MODEL":           "gpt-4",
		"BIDASH_LLM_TIMEOUT":         "45s",
		"BIDASH_SAMPLER_SAMPLE_SIZE": "25",
	}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Mongo.URI != "mongodb://db:27017" {
		t.Fatalf("mongo uri = %q", cfg.Mongo.URI)
	}
	if cfg.Mongo.DefaultCollection != "transactions" {
		t.Fatalf("collection = %q", cfg.Mongo.DefaultCollection)
	}
	if cfg.LLM.Model != "gpt-4" {
		t.Fatalf("model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout != 45*time.Second {
		t.Fatalf("timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.Sampler.SampleSize != 25 {
		t.Fatalf("sample size = %d", cfg.Sampler.SampleSize)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad profile":     {"BIDASH_PROFILE": "staging"},
		"bad provider":    {"BIDASH_LLM_PROVIDER": "llama"},
		"bad duration":    {"BIDASH_LLM_TIMEOUT": "soon"},
		"bad sample size": {"BIDASH_SAMPLER_SAMPLE_SIZE": "0"},
		"bad log level":   {"BIDASH_LOG_LEVEL": "verbose"},
	}
	for name, env := range cases {
		if _, err := Load("bidash-api", mapLookup(env)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
