package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/apiclient"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/oauth1"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/telemetry"
)

// maxTweetLength is counted in runes, which matches X for most text.
const maxTweetLength = 280

// TwitterEndpoints are the X API hosts.
type TwitterEndpoints struct {
	APIBase    string
	UploadBase string
}

// DefaultTwitterEndpoints are the production X hosts.
var DefaultTwitterEndpoints = TwitterEndpoints{
	APIBase:    "https://api.twitter.com",
	UploadBase: "https://upload.twitter.com",
}

// TwitterPublisher posts to X with OAuth2 or OAuth1 user credentials.
type TwitterPublisher struct {
	creds     Credentials
	consumer  oauth1.Credentials
	signer    *oauth1.Signer
	api       *apiclient.Client
	media     *mediaFetcher
	endpoints TwitterEndpoints
}

// NewTwitterPublisher creates the X publisher. consumer carries the app's
// OAuth1 consumer key and secret; leave it empty to disable OAuth1.
func NewTwitterPublisher(creds Credentials, consumer oauth1.Credentials, signer *oauth1.Signer, endpoints TwitterEndpoints, httpClient *http.Client) *TwitterPublisher {
	if signer == nil {
		signer = oauth1.NewSigner()
	}
	return &TwitterPublisher{
		creds:     creds,
		consumer:  consumer,
		signer:    signer,
		api:       apiclient.New(social.ProviderTwitter, httpClient, ""),
		media:     newMediaFetcher(social.ProviderTwitter),
		endpoints: endpoints,
	}
}

func (p *TwitterPublisher) Channel() social.Provider { return social.ProviderTwitter }

// authorizer applies one scheme's credentials to outgoing requests.
type authorizer struct {
	scheme Scheme
	bearer string
	oauth1 oauth1.Credentials
	signer *oauth1.Signer
}

func (a *authorizer) authorize(req *http.Request, form url.Values, enc oauth1.BodyEncoding) error {
	if a.scheme == SchemeOAuth2 {
		apiclient.SetBearer(req, a.bearer)
		return nil
	}
	signed, err := a.signer.Sign(a.oauth1, oauth1.Request{
		Method:       req.Method,
		URL:          req.URL.String(),
		Body:         form,
		BodyEncoding: enc,
	})
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", signed.AuthorizationHeader)
	return nil
}

func (p *TwitterPublisher) authorizer(ctx context.Context, userID string, scheme Scheme) (*authorizer, error) {
	switch scheme {
	case SchemeOAuth2:
		token, err := p.creds.GetValidAccessToken(ctx, userID, social.ProviderTwitter)
		if err != nil {
			return nil, err
		}
		return &authorizer{scheme: scheme, bearer: token}, nil
	case SchemeOAuth1:
		if p.consumer.ConsumerKey == "" {
			return nil, fmt.Errorf("%w: oauth1 consumer not configured", social.ErrNotConnected)
		}
		pair, err := p.creds.OAuth1Credentials(ctx, userID, social.ProviderTwitter)
		if err != nil {
			return nil, err
		}
		c := p.consumer
		c.Token = pair.Token
		c.TokenSecret = pair.TokenSecret
		return &authorizer{scheme: scheme, oauth1: c, signer: p.signer}, nil
	}
	return nil, fmt.Errorf("unknown auth scheme %q", scheme)
}

// credentialsUnusable reports whether a scheme's credentials are missing or
// could not be made valid, which lets the other scheme take over.
func credentialsUnusable(err error) bool {
	return errors.Is(err, social.ErrNotConnected) ||
		errors.Is(err, social.ErrRefreshFailed) ||
		errors.Is(err, social.ErrRefreshUnavailable)
}

func validateTweet(post *Post) error {
	if strings.TrimSpace(post.Text) == "" && len(post.MediaURLs) == 0 {
		return invalid("text", "is required")
	}
	if utf8.RuneCountInString(post.Text) > maxTweetLength {
		return invalid("text", fmt.Sprintf("must not exceed %d characters", maxTweetLength))
	}
	return nil
}

// Publish tries the preferred scheme (OAuth2 for text, OAuth1 when media is
// attached) and falls back to the other scheme exactly once on a 401 or
// unusable credentials. The last attempted error is returned.
func (p *TwitterPublisher) Publish(ctx context.Context, userID string, post *Post) (*Result, error) {
	if err := validateTweet(post); err != nil {
		return nil, err
	}
	media, err := p.media.fetch(ctx, post.MediaURLs)
	if err != nil {
		return nil, err
	}

	order := []Scheme{SchemeOAuth2, SchemeOAuth1}
	if len(media) > 0 {
		order = []Scheme{SchemeOAuth1, SchemeOAuth2}
	}

	log := logger.FromContext(ctx).With("channel", social.ProviderTwitter, "user_id", userID)
	var lastErr error
	for i, scheme := range order {
		auth, err := p.authorizer(ctx, userID, scheme)
		if err != nil {
			if lastErr != nil {
				// No usable alternate: surface the preferred scheme's failure.
				log.Debug("No alternate credentials for fallback", "scheme", scheme, "error", err)
				break
			}
			if i == 0 && credentialsUnusable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		if i > 0 {
			log.Info("Falling back to alternate auth scheme", "scheme", scheme, "previous_error", lastErr)
			telemetry.AddRequestAttributes(ctx, telemetry.KeyFallback.Bool(true), telemetry.KeyScheme.String(string(scheme)))
		}

		res, err := p.publishWith(ctx, auth, post, media)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if social.StatusCode(err) != http.StatusUnauthorized {
			return nil, err
		}
	}

	if social.StatusCode(lastErr) == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %w", social.ErrAuthFailed, lastErr)
	}
	return nil, lastErr
}

type tweetRequest struct {
	Text  string      `json:"text,omitempty"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetResponse struct {
	Data *struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

func (p *TwitterPublisher) publishWith(ctx context.Context, auth *authorizer, post *Post, media []mediaFile) (*Result, error) {
	telemetry.AddRequestAttributes(ctx, telemetry.KeyScheme.String(string(auth.scheme)))

	var ids []string
	for _, m := range media {
		id, err := p.upload(ctx, auth, m)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	body := tweetRequest{Text: post.Text}
	if len(ids) > 0 {
		body.Media = &tweetMedia{MediaIDs: ids}
	}
	req, err := apiclient.NewJSON(http.MethodPost, p.endpoints.APIBase+"/2/tweets", body)
	if err != nil {
		return nil, err
	}
	// JSON bodies never take part in the OAuth1 signature.
	if err := auth.authorize(req, nil, oauth1.BodyJSON); err != nil {
		return nil, err
	}

	var resp tweetResponse
	if err := p.api.DoJSON(ctx, "create_tweet", req, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.ID == "" {
		return nil, fmt.Errorf("%w: create tweet returned no id", social.ErrPublishRejected)
	}
	return &Result{
		Channel: social.ProviderTwitter,
		PostID:  resp.Data.ID,
		URL:     "https://x.com/i/web/status/" + resp.Data.ID,
		Scheme:  auth.scheme,
	}, nil
}

type uploadV1Response struct {
	MediaIDString string `json:"media_id_string"`
}

type uploadV2Response struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// upload sends one attachment: v1.1 media/upload with OAuth1, v2
// media/upload with a bearer token.
func (p *TwitterPublisher) upload(ctx context.Context, auth *authorizer, m mediaFile) (string, error) {
	file := &apiclient.FilePart{Field: "media", Filename: m.Name, ContentType: m.ContentType, Data: m.Data}

	if auth.scheme == SchemeOAuth1 {
		req, err := apiclient.NewMultipart(http.MethodPost, p.endpoints.UploadBase+"/1.1/media/upload.json", nil, file)
		if err != nil {
			return "", err
		}
		if err := auth.authorize(req, nil, oauth1.BodyMultipart); err != nil {
			return "", err
		}
		var resp uploadV1Response
		if err := p.api.DoJSON(ctx, "media_upload", req, &resp); err != nil {
			return "", err
		}
		if resp.MediaIDString == "" {
			return "", fmt.Errorf("%w: media upload returned no id", social.ErrPublishRejected)
		}
		return resp.MediaIDString, nil
	}

	fields := url.Values{"media_category": {"tweet_image"}}
	req, err := apiclient.NewMultipart(http.MethodPost, p.endpoints.APIBase+"/2/media/upload", fields, file)
	if err != nil {
		return "", err
	}
	if err := auth.authorize(req, nil, oauth1.BodyMultipart); err != nil {
		return "", err
	}
	var resp uploadV2Response
	if err := p.api.DoJSON(ctx, "media_upload", req, &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("%w: media upload returned no id", social.ErrPublishRejected)
	}
	return resp.Data.ID, nil
}

type tweetMetricsResponse struct {
	Data *struct {
		ID            string `json:"id"`
		PublicMetrics struct {
			RetweetCount    int64 `json:"retweet_count"`
			ReplyCount      int64 `json:"reply_count"`
			LikeCount       int64 `json:"like_count"`
			QuoteCount      int64 `json:"quote_count"`
			ImpressionCount int64 `json:"impression_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// Metrics reads public_metrics for a tweet, preferring OAuth2.
func (p *TwitterPublisher) Metrics(ctx context.Context, userID, postID string) (*Metrics, error) {
	auth, err := p.authorizer(ctx, userID, SchemeOAuth2)
	if err != nil {
		if !credentialsUnusable(err) {
			return nil, err
		}
		alt, altErr := p.authorizer(ctx, userID, SchemeOAuth1)
		if altErr != nil {
			return nil, err
		}
		auth = alt
	}

	req, err := apiclient.NewGet(p.endpoints.APIBase+"/2/tweets/"+url.PathEscape(postID),
		url.Values{"tweet.fields": {"public_metrics"}})
	if err != nil {
		return nil, err
	}
	if err := auth.authorize(req, nil, oauth1.BodyForm); err != nil {
		return nil, err
	}

	var resp tweetMetricsResponse
	if err := p.api.DoJSON(ctx, "tweet_metrics", req, &resp); err != nil {
		return nil, ClassifyReadError(ctx, social.ProviderTwitter, err, p.probe(auth))
	}
	// X answers 200 with an errors array for deleted tweets.
	if resp.Data == nil {
		return nil, fmt.Errorf("%w: tweet %s", social.ErrPostNotFound, postID)
	}
	m := resp.Data.PublicMetrics
	return &Metrics{
		PostID:      postID,
		Likes:       m.LikeCount,
		Comments:    m.ReplyCount,
		Shares:      m.RetweetCount + m.QuoteCount,
		Impressions: m.ImpressionCount,
	}, nil
}

func (p *TwitterPublisher) probe(auth *authorizer) ProbeFunc {
	return func(ctx context.Context) error {
		req, err := apiclient.NewGet(p.endpoints.APIBase+"/2/users/me", nil)
		if err != nil {
			return err
		}
		if err := auth.authorize(req, nil, oauth1.BodyForm); err != nil {
			return err
		}
		_, err = p.api.Do(ctx, "users_me", req)
		return err
	}
}
