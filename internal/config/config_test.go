package config

import (
	"testing"
	"time"
)

func TestNewFromEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("OPENAI_API_KEY", "")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.Port != 8080 {
			t.Errorf("Expected Port to be 8080, got %d", cfg.Port)
		}
		if cfg.AssistantTimeout != 20*time.Second {
			t.Errorf("Expected AssistantTimeout to be 20s, got %s", cfg.AssistantTimeout)
		}
		if cfg.ShopAIMaxLines != 60 {
			t.Errorf("Expected ShopAIMaxLines to be 60, got %d", cfg.ShopAIMaxLines)
		}
		if cfg.AssistantProvider() != "" {
			t.Errorf("Expected no assistant provider, got '%s'", cfg.AssistantProvider())
		}
		if !cfg.AutoMigrate {
			t.Error("Expected AutoMigrate to default to true")
		}
	})

	t.Run("GeminiWinsOverOpenAI", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gemini_key")
		t.Setenv("OPENAI_API_KEY", "openai_key")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.AssistantProvider() != "gemini" {
			t.Errorf("Expected provider 'gemini', got '%s'", cfg.AssistantProvider())
		}
		if cfg.AssistantModel() != "gemini-1.5-flash" {
			t.Errorf("Expected model 'gemini-1.5-flash', got '%s'", cfg.AssistantModel())
		}
	})

	t.Run("OpenAIOnly", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("OPENAI_API_KEY", "openai_key")
		t.Setenv("OPENAI_BASE_URL", "http://llm.test/v1/")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.AssistantProvider() != "openai" {
			t.Errorf("Expected provider 'openai', got '%s'", cfg.AssistantProvider())
		}
		if cfg.OpenAIBaseURL != "http://llm.test/v1" {
			t.Errorf("Expected trailing slash to be trimmed, got '%s'", cfg.OpenAIBaseURL)
		}
	})

	t.Run("Allowlist", func(t *testing.T) {
		t.Setenv("TELEGRAM_ALLOWLIST", "12, 34")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !cfg.IsAllowedTelegramUser(34) {
			t.Error("Expected user 34 to be allowed")
		}
		if cfg.IsAllowedTelegramUser(56) {
			t.Error("Expected user 56 to be rejected")
		}
	})

	t.Run("InvalidAllowlist", func(t *testing.T) {
		t.Setenv("TELEGRAM_ALLOWLIST", "12,abc")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for an invalid allowlist, got nil")
		}
		expectedError := `TELEGRAM_ALLOWLIST contains an invalid user id "abc"`
		if err.Error() != expectedError {
			t.Errorf("Expected error '%s', got '%s'", expectedError, err.Error())
		}
	})

	t.Run("InvalidPort", func(t *testing.T) {
		t.Setenv("PORT", "0")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for PORT=0, got nil")
		}
	})
}

func TestIsAllowedTelegramUserEmptyAllowlist(t *testing.T) {
	cfg := &Config{}
	if !cfg.IsAllowedTelegramUser(99) {
		t.Error("Expected an empty allowlist to admit everyone")
	}
}
