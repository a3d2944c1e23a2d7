package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/apiclient"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/juju/clock"
	"github.com/juju/retry"
)

const maxCaptionLength = 2200

// ErrPublishTimeout is returned when a media container is not ready before
// the polling ceiling.
var ErrPublishTimeout = errors.New("publish timed out waiting for provider")

var errContainerInProgress = errors.New("media container in progress")

// Graph API error codes.
const (
	graphCodeUnsupportedGet = 100
	graphCodeInvalidToken   = 190
)

// AccountResolver finds the Instagram business account for a token.
type AccountResolver interface {
	BusinessAccountID(ctx context.Context, accessToken string) (string, error)
}

// InstagramOptions configures an InstagramPublisher.
type InstagramOptions struct {
	GraphBase    string
	PollInterval time.Duration
	PollTimeout  time.Duration
	Clock        clock.Clock
}

// InstagramPublisher publishes single image posts through the Graph API
// container flow: create, wait until FINISHED, publish.
type InstagramPublisher struct {
	creds        Credentials
	accounts     AccountResolver
	api          *apiclient.Client
	graphBase    string
	pollInterval time.Duration
	pollTimeout  time.Duration
	clock        clock.Clock
}

// NewInstagramPublisher creates the Instagram publisher. accounts may be nil
// when every stored connection carries its business account id.
func NewInstagramPublisher(creds Credentials, accounts AccountResolver, opts InstagramOptions, httpClient *http.Client) *InstagramPublisher {
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 60 * time.Second
	}
	return &InstagramPublisher{
		creds:        creds,
		accounts:     accounts,
		api:          apiclient.New(social.ProviderInstagram, httpClient, ""),
		graphBase:    strings.TrimRight(opts.GraphBase, "/"),
		pollInterval: opts.PollInterval,
		pollTimeout:  opts.PollTimeout,
		clock:        opts.Clock,
	}
}

func (p *InstagramPublisher) Channel() social.Provider { return social.ProviderInstagram }

type graphIDResponse struct {
	ID string `json:"id"`
}

type containerStatusResponse struct {
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

func (p *InstagramPublisher) Publish(ctx context.Context, userID string, post *Post) (*Result, error) {
	if len(post.MediaURLs) == 0 {
		return nil, invalid("media_urls", "an image is required for instagram")
	}
	if utf8.RuneCountInString(post.Text) > maxCaptionLength {
		return nil, invalid("text", fmt.Sprintf("must not exceed %d characters", maxCaptionLength))
	}

	token, err := p.creds.GetValidAccessToken(ctx, userID, social.ProviderInstagram)
	if err != nil {
		return nil, err
	}
	igID, err := p.accountID(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("channel", social.ProviderInstagram, "user_id", userID)

	var container graphIDResponse
	err = p.post(ctx, "create_container", "/"+igID+"/media", token, url.Values{
		"image_url": {post.MediaURLs[0]},
		"caption":   {post.Text},
	}, &container)
	if err != nil {
		return nil, graphError(err)
	}
	if container.ID == "" {
		return nil, fmt.Errorf("%w: container creation returned no id", social.ErrPublishRejected)
	}

	if err := p.waitForContainer(ctx, token, container.ID); err != nil {
		log.Warn("Media container did not become ready", "container_id", container.ID, "error", err)
		return nil, err
	}

	var published graphIDResponse
	err = p.post(ctx, "media_publish", "/"+igID+"/media_publish", token, url.Values{
		"creation_id": {container.ID},
	}, &published)
	if err != nil {
		return nil, graphError(err)
	}
	if published.ID == "" {
		return nil, fmt.Errorf("%w: media_publish returned no id", social.ErrPublishRejected)
	}

	return &Result{
		Channel: social.ProviderInstagram,
		PostID:  published.ID,
		URL:     p.permalink(ctx, token, published.ID),
		Scheme:  SchemeOAuth2,
	}, nil
}

func (p *InstagramPublisher) accountID(ctx context.Context, userID, token string) (string, error) {
	conn, err := p.creds.Connection(ctx, userID, social.ProviderInstagram)
	if err != nil {
		return "", err
	}
	if conn.ProviderUserID != "" {
		return conn.ProviderUserID, nil
	}
	if p.accounts == nil {
		return "", fmt.Errorf("%w: no instagram business account linked", social.ErrNotConnected)
	}
	return p.accounts.BusinessAccountID(ctx, token)
}

// waitForContainer polls the container status at a fixed interval until it
// is FINISHED. ERROR and EXPIRED stop immediately; the timeout is a hard
// ceiling.
func (p *InstagramPublisher) waitForContainer(ctx context.Context, token, containerID string) error {
	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() (err error) {
			defer func() { lastErr = err }()

			req, err := apiclient.NewGet(p.graphBase+"/"+containerID, url.Values{"fields": {"status_code,status"}})
			if err != nil {
				return err
			}
			apiclient.SetBearer(req, token)
			var status containerStatusResponse
			if err := p.api.DoJSON(ctx, "container_status", req, &status); err != nil {
				return graphError(err)
			}
			switch status.StatusCode {
			case "FINISHED", "PUBLISHED":
				return nil
			case "IN_PROGRESS", "":
				return errContainerInProgress
			default:
				return fmt.Errorf("%w: container %s: %s %s", social.ErrPublishRejected, containerID, status.StatusCode, status.Status)
			}
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, errContainerInProgress)
		},
		Delay:       p.pollInterval,
		MaxDuration: p.pollTimeout,
		Clock:       p.clock,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
		return nil
	case retry.IsDurationExceeded(err):
		return fmt.Errorf("%w: container %s not ready after %s", ErrPublishTimeout, containerID, p.pollTimeout)
	case retry.IsRetryStopped(err):
		return ctx.Err()
	case lastErr != nil:
		// retry wraps the fatal error in a trace that hides it from errors.Is.
		return lastErr
	}
	return err
}

func (p *InstagramPublisher) post(ctx context.Context, op, path, token string, form url.Values, out any) error {
	req, err := apiclient.NewForm(http.MethodPost, p.graphBase+path, form)
	if err != nil {
		return err
	}
	apiclient.SetBearer(req, token)
	return p.api.DoJSON(ctx, op, req, out)
}

func (p *InstagramPublisher) permalink(ctx context.Context, token, mediaID string) string {
	req, err := apiclient.NewGet(p.graphBase+"/"+mediaID, url.Values{"fields": {"permalink"}})
	if err != nil {
		return ""
	}
	apiclient.SetBearer(req, token)
	var resp struct {
		Permalink string `json:"permalink"`
	}
	if err := p.api.DoJSON(ctx, "permalink", req, &resp); err != nil {
		logger.FromContext(ctx).Debug("Could not read permalink", "media_id", mediaID, "error", err)
		return ""
	}
	return resp.Permalink
}

type mediaInsightsResponse struct {
	ID            string `json:"id"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
}

// Metrics reads like and comment counts for a published media object.
func (p *InstagramPublisher) Metrics(ctx context.Context, userID, postID string) (*Metrics, error) {
	token, err := p.creds.GetValidAccessToken(ctx, userID, social.ProviderInstagram)
	if err != nil {
		return nil, err
	}
	req, err := apiclient.NewGet(p.graphBase+"/"+url.PathEscape(postID), url.Values{"fields": {"id,like_count,comments_count"}})
	if err != nil {
		return nil, err
	}
	apiclient.SetBearer(req, token)

	var resp mediaInsightsResponse
	if err := p.api.DoJSON(ctx, "media_metrics", req, &resp); err != nil {
		err = graphError(err)
		if errors.Is(err, social.ErrPostNotFound) || errors.Is(err, social.ErrAuthFailed) {
			return nil, err
		}
		return nil, ClassifyReadError(ctx, social.ProviderInstagram, err, p.probe(token))
	}
	return &Metrics{
		PostID:   postID,
		Likes:    resp.LikeCount,
		Comments: resp.CommentsCount,
	}, nil
}

func (p *InstagramPublisher) probe(token string) ProbeFunc {
	return func(ctx context.Context) error {
		req, err := apiclient.NewGet(p.graphBase+"/me", url.Values{"fields": {"id"}})
		if err != nil {
			return err
		}
		apiclient.SetBearer(req, token)
		_, err = p.api.Do(ctx, "me", req)
		return err
	}
}

// graphError maps Graph API error codes carried in 400 responses: 100 on a
// read means the object is gone, 190 means the token is dead.
func graphError(err error) error {
	var pe *social.ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusBadRequest {
		return err
	}
	var body struct {
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(pe.Body), &body) != nil {
		return err
	}
	switch body.Error.Code {
	case graphCodeUnsupportedGet:
		if pe.Operation == "media_metrics" {
			return fmt.Errorf("%w: %w", social.ErrPostNotFound, err)
		}
	case graphCodeInvalidToken:
		return fmt.Errorf("%w: %w", social.ErrAuthFailed, err)
	}
	return err
}
