// Package apiclient is the HTTP helper shared by the OAuth clients and the
// publishers. It maps non-2xx responses to social.ProviderError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/telemetry"
)

// DefaultTimeout applies when no HTTP client is injected.
const DefaultTimeout = 30 * time.Second

// maxResponseBody bounds how much of a provider response is read.
const maxResponseBody = 8 << 20

// Client performs requests against one provider.
type Client struct {
	Provider   social.Provider
	HTTPClient *http.Client
	// UserAgent is set on every request when non-empty.
	UserAgent string
}

// New creates a Client; a nil httpClient gets DefaultTimeout.
func New(provider social.Provider, httpClient *http.Client, userAgent string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{Provider: provider, HTTPClient: httpClient, UserAgent: userAgent}
}

// Response is a successful provider response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into out.
func (r *Response) Decode(out any) error {
	if out == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}

// Do sends req. Any non-2xx status becomes a *social.ProviderError.
func (c *Client) Do(ctx context.Context, op string, req *http.Request) (*Response, error) {
	req = req.WithContext(ctx)
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		telemetry.AddRequestAttributes(ctx,
			telemetry.KeyProvider.String(string(c.Provider)),
			telemetry.KeyOperation.String(op),
		)
		return nil, fmt.Errorf("%s %s: %w", c.Provider, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w", c.Provider, op, err)
	}

	telemetry.AddRequestAttributes(ctx,
		telemetry.KeyProvider.String(string(c.Provider)),
		telemetry.KeyOperation.String(op),
		telemetry.KeyStatus.Int(resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, social.NewProviderError(c.Provider, op, resp.StatusCode, body)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// DoJSON sends req and decodes the JSON response into out.
func (c *Client) DoJSON(ctx context.Context, op string, req *http.Request, out any) error {
	resp, err := c.Do(ctx, op, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// NewGet builds a GET request for rawURL with query merged in.
func NewGet(rawURL string, query url.Values) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return http.NewRequest(http.MethodGet, u.String(), nil)
}

// NewForm builds a form-encoded request.
func NewForm(method, rawURL string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequest(method, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// NewJSON builds a request with a JSON body.
func NewJSON(method, rawURL string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	req, err := http.NewRequest(method, rawURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// FilePart is one file field of a multipart body.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// NewMultipart builds a multipart/form-data request from fields and one file.
func NewMultipart(method, rawURL string, fields url.Values, file *FilePart) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			if err := w.WriteField(k, v); err != nil {
				return nil, err
			}
		}
	}
	if file != nil {
		part, err := w.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequest(method, rawURL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

// SetBearer sets an OAuth2 bearer Authorization header.
func SetBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}
