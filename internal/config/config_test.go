package config

import (
	"strings"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "telecaller"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"APP_ENV", "DB_HOST", "REDIS_HOST", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}
}

func TestValidate_ProductionRequiresExplicitValues(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error for production config")
	}
	for _, want := range []string{"DB_SSLMODE", "PUBLIC_BASE_URL", "JWT_ISSUER", "TWILIO_ACCOUNT_SID"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.App.PublicBaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected public base url %q", c.App.PublicBaseURL)
	}
	if c.Twilio.PhoneRegion != "IN" {
		t.Fatalf("unexpected phone region %q", c.Twilio.PhoneRegion)
	}
	a := c.Assignment
	if a.MaxReassignments != 3 || a.Staleness != time.Hour || a.ReassignInterval != 30*time.Minute {
		t.Fatalf("unexpected assignment defaults: %+v", a)
	}
	if a.HousekeepingSpec != "@daily" || a.ArchiveAfter != 30*24*time.Hour {
		t.Fatalf("unexpected housekeeping defaults: %+v", a)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	c := validLocal()
	c.App.PublicBaseURL = "not-a-url"
	c.Assignment.HousekeepingSpec = "every tuesday"
	c.Twilio.PhoneRegion = "IND"
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"PUBLIC_BASE_URL", "ASSIGN_HOUSEKEEPING_SPEC", "PHONE_DEFAULT_REGION"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("PUBLIC_BASE_URL", "https://calls.example.com/")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_NAME", "n")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("ASSIGN_MAX_REASSIGNMENTS", "5")
	t.Setenv("ASSIGN_STALENESS", "2h")

	c, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.App.PublicBaseURL != "https://calls.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.App.PublicBaseURL)
	}
	if len(c.App.CORSOrigins) != 2 || c.App.CORSOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected cors origins %v", c.App.CORSOrigins)
	}
	if c.Assignment.MaxReassignments != 5 || c.Assignment.Staleness != 2*time.Hour {
		t.Fatalf("unexpected assignment config %+v", c.Assignment)
	}
	if c.RedisAddr() != "redis:6379" || c.HTTPAddr() != ":9090" {
		t.Fatalf("unexpected addrs %q %q", c.RedisAddr(), c.HTTPAddr())
	}
}

func TestLoad_CollectsParseErrors(t *testing.T) {
	t.Setenv("APP_PORT", "eighty")
	t.Setenv("DB_PORT", "")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("ASSIGN_STALENESS", "soon")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"APP_PORT", "DB_PORT", "ASSIGN_STALENESS"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}
}
