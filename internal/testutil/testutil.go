// Package testutil provides shared helpers for package tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/config"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/db"
	"github.com/juju/clock/testclock"
)

// Epoch is the fixed start time used by tests that need a deterministic clock.
var Epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// TestConfig returns a config with test defaults and no provider credentials.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:               config.EnvTest,
		Port:                 "0",
		PublicURL:            "https://app.example.com",
		FrontendURL:          "https://app.example.com",
		DatabaseURL:          ":memory:",
		StateStore:           "memory",
		StateTTL:             10 * time.Minute,
		TokenSkew:            5 * time.Minute,
		HTTPTimeout:          5 * time.Second,
		PublishPollInterval:  time.Second,
		PublishPollTimeout:   10 * time.Second,
		SessionSecret:        strings.Repeat("k", 32),
		SessionIssuer:        "traktoon-test",
		FacebookGraphVersion: "v19.0",
		RedditUserAgent:      "test:traktoon:v0",
		LogLevel:             "ERROR",
	}
}

// TestDatabase creates an in-memory SQLite database with the schema applied
func TestDatabase(t *testing.T) *db.Service {
	t.Helper()

	dbService, err := db.NewService(TestConfig(t))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		if err := dbService.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	return dbService
}

// TestClock returns a manual clock starting at Epoch
func TestClock(t *testing.T) *testclock.Clock {
	t.Helper()
	return testclock.NewClock(Epoch)
}

// TestServer creates a test HTTP server - handler should be set up by the test
func TestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
	})

	return server
}
