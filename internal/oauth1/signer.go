// Package oauth1 implements OAuth 1.0a request signing (RFC 5849, HMAC-SHA1).
package oauth1

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/juju/clock"
)

// SignatureMethod is the only method supported by the providers we talk to.
const SignatureMethod = "HMAC-SHA1"

// Version is the protocol version advertised in oauth_version.
const Version = "1.0"

// nonceBytes is the amount of randomness behind each oauth_nonce.
const nonceBytes = 32

// BodyEncoding tells the signer how the request body is transmitted.
type BodyEncoding int

const (
	// BodyForm bodies are application/x-www-form-urlencoded and their
	// parameters take part in the signature.
	BodyForm BodyEncoding = iota
	// BodyJSON bodies are never signed, even when they carry the same fields.
	BodyJSON
	// BodyMultipart bodies (media upload) are never signed.
	BodyMultipart
)

// Credentials are the consumer and (optional) token pair used to sign.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// Request describes the HTTP request being signed.
type Request struct {
	Method string
	// URL may carry a query string; its parameters are merged with Query.
	URL          string
	Query        url.Values
	Body         url.Values
	BodyEncoding BodyEncoding
	// OAuthParams are extra oauth_* parameters such as oauth_callback or
	// oauth_verifier.
	OAuthParams map[string]string
}

// Signed is the output of Sign.
type Signed struct {
	AuthorizationHeader string
	OAuthParams         map[string]string
	BaseString          string
}

// NonceFunc returns a fresh nonce for every call.
type NonceFunc func() (string, error)

// Signer produces OAuth 1.0a Authorization headers.
type Signer struct {
	clock clock.Clock
	nonce NonceFunc
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock overrides the clock used for oauth_timestamp.
func WithClock(c clock.Clock) Option {
	return func(s *Signer) { s.clock = c }
}

// WithNonce overrides the nonce source.
func WithNonce(fn NonceFunc) Option {
	return func(s *Signer) { s.nonce = fn }
}

// NewSigner creates a Signer using the wall clock and crypto/rand nonces.
func NewSigner(opts ...Option) *Signer {
	s := &Signer{
		clock: clock.WallClock,
		nonce: RandomNonce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var defaultSigner = NewSigner()

// Sign signs req with the default signer.
func Sign(creds Credentials, req Request) (*Signed, error) {
	return defaultSigner.Sign(creds, req)
}

// RandomNonce returns 32 random bytes, hex encoded.
func RandomNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Sign computes the signature for req and renders the Authorization header.
func (s *Signer) Sign(creds Credentials, req Request) (*Signed, error) {
	if creds.ConsumerKey == "" {
		return nil, ErrMissingConsumerKey
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		return nil, ErrMissingMethod
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid request url: %w", err)
	}
	normalized, err := normalize(u)
	if err != nil {
		return nil, err
	}

	nonce, err := s.nonce()
	if err != nil {
		return nil, err
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     creds.ConsumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": SignatureMethod,
		"oauth_timestamp":        strconv.FormatInt(s.clock.Now().Unix(), 10),
		"oauth_version":          Version,
	}
	if creds.Token != "" {
		oauthParams["oauth_token"] = creds.Token
	}
	for k, v := range req.OAuthParams {
		oauthParams[k] = v
	}

	params := url.Values{}
	for k, v := range oauthParams {
		params.Add(k, v)
	}
	mergeValues(params, u.Query())
	mergeValues(params, req.Query)
	if req.BodyEncoding == BodyForm {
		mergeValues(params, req.Body)
	}

	base := SignatureBaseString(method, normalized, params)
	signature := computeSignature(SigningKey(creds.ConsumerSecret, creds.TokenSecret), base)
	oauthParams["oauth_signature"] = signature

	return &Signed{
		AuthorizationHeader: renderHeader(oauthParams),
		OAuthParams:         oauthParams,
		BaseString:          base,
	}, nil
}

type param struct {
	key   string
	value string
}

func mergeValues(dst, src url.Values) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// SignatureBaseString builds METHOD&enc(url)&enc(sorted params).
// normalizedURL must already be in the form returned by NormalizeURL.
func SignatureBaseString(method, normalizedURL string, params url.Values) string {
	var encoded []param
	for k, vs := range params {
		for _, v := range vs {
			encoded = append(encoded, param{PercentEncode(k), PercentEncode(v)})
		}
	}
	sort.Slice(encoded, func(i, j int) bool {
		if encoded[i].key != encoded[j].key {
			return encoded[i].key < encoded[j].key
		}
		return encoded[i].value < encoded[j].value
	})

	pairs := make([]string, len(encoded))
	for i, p := range encoded {
		pairs[i] = p.key + "=" + p.value
	}

	return strings.ToUpper(method) + "&" + PercentEncode(normalizedURL) + "&" + PercentEncode(strings.Join(pairs, "&"))
}

// SigningKey joins the encoded consumer and token secrets.
func SigningKey(consumerSecret, tokenSecret string) string {
	return PercentEncode(consumerSecret) + "&" + PercentEncode(tokenSecret)
}

func computeSignature(key, base string) string {
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func renderHeader(oauthParams map[string]string) string {
	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = PercentEncode(k) + `="` + PercentEncode(oauthParams[k]) + `"`
	}
	return "OAuth " + strings.Join(parts, ", ")
}

// NormalizeURL lowercases scheme and host, strips default ports and drops
// the query and fragment.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid request url: %w", err)
	}
	return normalize(u)
}

func normalize(u *url.URL) (string, error) {
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, u.String())
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host = host + ":" + port
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path, nil
}

// PercentEncode encodes s per RFC 3986: only ALPHA, DIGIT, '-', '.', '_'
// and '~' are left as is.
func PercentEncode(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hexDigits[c>>4])
		sb.WriteByte(hexDigits[c&0x0F])
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
