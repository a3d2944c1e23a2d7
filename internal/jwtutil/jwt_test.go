package jwtutil

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
)

var secret = strings.Repeat("s", 32)

func TestIssueAndVerify(t *testing.T) {
	clk := testclock.NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s, err := NewSessions(secret, "traktoon", clk)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}

	tok, err := s.Issue("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := s.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Sub != "user-1" || claims.Iss != "traktoon" {
		t.Errorf("unexpected claims: %+v", claims)
	}

	clk.Advance(2 * time.Hour)
	if _, err := s.Verify(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejects(t *testing.T) {
	s, _ := NewSessions(secret, "traktoon", nil)
	other, _ := NewSessions(strings.Repeat("o", 32), "traktoon", nil)
	wrongIssuer, _ := NewSessions(secret, "someone-else", nil)

	forged, _ := other.Issue("user-1", time.Hour)
	foreign, _ := wrongIssuer.Issue("user-1", time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "invalid.jwt.token"},
		{"wrong key", forged},
		{"wrong issuer", foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Verify(context.Background(), tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewSessionsRejectsWeakSecret(t *testing.T) {
	if _, err := NewSessions("short", "traktoon", nil); !errors.Is(err, ErrWeakSecret) {
		t.Errorf("expected ErrWeakSecret, got %v", err)
	}
	s, _ := NewSessions(secret, "traktoon", nil)
	if _, err := s.Issue("", time.Hour); !errors.Is(err, ErrMissingSubject) {
		t.Errorf("expected ErrMissingSubject, got %v", err)
	}
}
