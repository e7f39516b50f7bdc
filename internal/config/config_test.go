package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setEnv sets every variable for the duration of the test and clears the rest of the keys Load reads.
func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k := range defaults {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func noFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, nil)

	cfg, err := LoadFile(noFile(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.StoreDriver != StorePostgres {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, StorePostgres)
	}
	if cfg.JWTIssuer != "serveractions-auth" || cfg.JWTAudience != "serveractions-api" {
		t.Errorf("issuer/audience = %q/%q", cfg.JWTIssuer, cfg.JWTAudience)
	}
	if cfg.RateLimitRPS != 20 || cfg.RateLimitBurst != 40 {
		t.Errorf("rate limit = %v/%d, want 20/40", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("log = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.TelemetryKafkaTopic != "serveractions-telemetry" {
		t.Errorf("TelemetryKafkaTopic = %q", cfg.TelemetryKafkaTopic)
	}
	if cfg.AutoMigrate || cfg.OTLPInsecure {
		t.Error("boolean flags should default to false")
	}
	if cfg.IsProduction() {
		t.Error("default env should not be production")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	setEnv(t, map[string]string{
		"GRPC_ADDR":        ":7070",
		"STORE_DRIVER":     " SQLite ",
		"AUTO_MIGRATE":     "true",
		"RATE_LIMIT_RPS":   "2.5",
		"RATE_LIMIT_BURST": "5",
		"APP_ENV":          "Production",
	})

	cfg, err := LoadFile(noFile(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":7070" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":7070")
	}
	if cfg.StoreDriver != StoreSQLite {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, StoreSQLite)
	}
	if !cfg.AutoMigrate {
		t.Error("AutoMigrate = false, want true")
	}
	if cfg.RateLimitRPS != 2.5 || cfg.RateLimitBurst != 5 {
		t.Errorf("rate limit = %v/%d, want 2.5/5", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction = false, want true")
	}
}

func TestLoad_WithEnvFile(t *testing.T) {
	setEnv(t, map[string]string{"JWT_ISSUER": "from-env"})
	path := filepath.Join(t.TempDir(), ".env")
	content := "JWT_ISSUER=from-file\nJWT_AUDIENCE=file-audience\nKAFKA_BROKERS=k1:9092\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWTIssuer != "from-env" {
		t.Errorf("JWTIssuer = %q, want env to override the file", cfg.JWTIssuer)
	}
	if cfg.JWTAudience != "file-audience" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "file-audience")
	}
	if got := cfg.KafkaBrokersList(); len(got) != 1 || got[0] != "k1:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store driver", map[string]string{"STORE_DRIVER": "mysql"}},
		{"negative rate", map[string]string{"RATE_LIMIT_RPS": "-1"}},
		{"rate without burst", map[string]string{"RATE_LIMIT_RPS": "5", "RATE_LIMIT_BURST": "0"}},
		{"non-numeric burst", map[string]string{"RATE_LIMIT_BURST": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)
			if _, err := LoadFile(noFile(t)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidateStore(t *testing.T) {
	if err := (&Config{StoreDriver: StorePostgres}).ValidateStore(); err == nil {
		t.Error("postgres without DATABASE_URL should fail")
	}
	if err := (&Config{StoreDriver: StorePostgres, DatabaseURL: "postgres://localhost/db"}).ValidateStore(); err != nil {
		t.Errorf("postgres with DATABASE_URL: %v", err)
	}
	if err := (&Config{StoreDriver: StoreSQLite}).ValidateStore(); err == nil {
		t.Error("sqlite without SQLITE_PATH should fail")
	}
	if err := (&Config{StoreDriver: StoreSQLite, SQLitePath: ":memory:"}).ValidateStore(); err != nil {
		t.Errorf("sqlite with path: %v", err)
	}
}

func TestAccessTTL(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"invalid", 15 * time.Minute},
		{"0s", 15 * time.Minute},
		{"-5m", 15 * time.Minute},
		{"", 15 * time.Minute},
	}
	for _, tt := range tests {
		cfg := &Config{JWTAccessTTL: tt.in}
		if got := cfg.AccessTTL(); got != tt.want {
			t.Errorf("AccessTTL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestKafkaBrokersList(t *testing.T) {
	var nilCfg *Config
	if got := nilCfg.KafkaBrokersList(); got != nil {
		t.Errorf("nil config: %v", got)
	}
	cfg := &Config{KafkaBrokers: " a:9092, ,b:9092 "}
	got := cfg.KafkaBrokersList()
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}
}
