// Package auth provides PKCE and state generation for OAuth 2.0 connect flows
// and the local session cookie helpers.
package auth

import (
	"net/http"

	"golang.org/x/oauth2"
)

// PKCE is the verifier/challenge/state triple for one authorization attempt.
type PKCE struct {
	CodeVerifier  string
	CodeChallenge string
	State         string
}

// GeneratePKCE returns a fresh verifier, its S256 challenge and an
// independent state token.
func GeneratePKCE() (*PKCE, error) {
	state, err := GenerateStateToken()
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()
	return &PKCE{
		CodeVerifier:  verifier,
		CodeChallenge: ChallengeS256(verifier),
		State:         state,
	}, nil
}

// ChallengeS256 returns base64url(SHA-256(verifier)) without padding.
func ChallengeS256(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// Session utilities
const sessionCookieName = "gtm_session"

// SetSessionCookieWithEnv stores the local account session token.
func SetSessionCookieWithEnv(w http.ResponseWriter, token string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   !isDev,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookieWithEnv expires the session cookie.
func ClearSessionCookieWithEnv(w http.ResponseWriter, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !isDev,
		SameSite: http.SameSiteLaxMode,
	})
}

func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}
