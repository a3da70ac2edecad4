package internal

import (
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestStoreConfig_EmptyDriverDefaultsMemory(t *testing.T) {
	cfg := StoreConfig{Database: "main"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty driver should default to memory: %v", err)
	}
	if cfg.Driver != StoreDriverMemory {
		t.Errorf("driver = %q, want %q", cfg.Driver, StoreDriverMemory)
	}
}

func TestStoreConfig_UnknownDriver(t *testing.T) {
	cfg := StoreConfig{Driver: "dynamo", Database: "main"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown driver should fail validation")
	}
}

func TestStoreConfig_DriverSectionRequired(t *testing.T) {
	cfg := StoreConfig{Driver: StoreDriverHTTP, Database: "main"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("http driver without endpoint should fail")
	}

	cfg = StoreConfig{Driver: StoreDriverSQLite, Database: "main"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("sqlite driver without path should fail")
	}

	cfg = StoreConfig{Driver: StoreDriverRedis, Database: "main"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("redis driver without addr should fail")
	}
}

func TestDocumentsConfig_AllIdsRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Documents.LinksDocument = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing links document id should fail validation")
	}
}

func TestTrackedConfig_AllCollectionsRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Tracked.YouTube = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing tracked collection should fail validation")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}
