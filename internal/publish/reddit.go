package publish

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/apiclient"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
)

// DefaultRedditAPIBase is the host for authenticated Reddit API calls.
const DefaultRedditAPIBase = "https://oauth.reddit.com"

// RedditPublisher submits self and link posts to a subreddit.
type RedditPublisher struct {
	creds   Credentials
	api     *apiclient.Client
	apiBase string
}

// NewRedditPublisher creates the Reddit publisher. userAgent is required by
// Reddit on every call.
func NewRedditPublisher(creds Credentials, apiBase, userAgent string, httpClient *http.Client) *RedditPublisher {
	return &RedditPublisher{
		creds:   creds,
		api:     apiclient.New(social.ProviderReddit, httpClient, userAgent),
		apiBase: strings.TrimRight(apiBase, "/"),
	}
}

func (p *RedditPublisher) Channel() social.Provider { return social.ProviderReddit }

type redditSubmitResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"data"`
	} `json:"json"`
}

// Publish submits a link post when Link is set and a self post otherwise.
func (p *RedditPublisher) Publish(ctx context.Context, userID string, post *Post) (*Result, error) {
	if strings.TrimSpace(post.Title) == "" {
		return nil, invalid("title", "is required")
	}
	subreddit := strings.TrimPrefix(strings.TrimSpace(post.Subreddit), "r/")
	if subreddit == "" {
		return nil, invalid("subreddit", "is required")
	}

	token, err := p.creds.GetValidAccessToken(ctx, userID, social.ProviderReddit)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"sr":       {subreddit},
		"title":    {post.Title},
		"api_type": {"json"},
	}
	if post.Link != "" {
		form.Set("kind", "link")
		form.Set("url", post.Link)
	} else {
		form.Set("kind", "self")
		form.Set("text", post.Text)
	}

	req, err := apiclient.NewForm(http.MethodPost, p.apiBase+"/api/submit", form)
	if err != nil {
		return nil, err
	}
	apiclient.SetBearer(req, token)

	var resp redditSubmitResponse
	if err := p.api.DoJSON(ctx, "submit", req, &resp); err != nil {
		if social.StatusCode(err) == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", social.ErrAuthFailed, err)
		}
		return nil, err
	}
	if len(resp.JSON.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", social.ErrPublishRejected, redditErrors(resp.JSON.Errors))
	}
	if resp.JSON.Data.ID == "" {
		return nil, fmt.Errorf("%w: submit returned no id", social.ErrPublishRejected)
	}
	return &Result{
		Channel: social.ProviderReddit,
		PostID:  resp.JSON.Data.ID,
		URL:     resp.JSON.Data.URL,
		Scheme:  SchemeOAuth2,
	}, nil
}

// redditErrors flattens [["CODE", "message", "field"], ...].
func redditErrors(errs [][]any) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		fields := make([]string, 0, len(e))
		for _, f := range e {
			if s, ok := f.(string); ok && s != "" {
				fields = append(fields, s)
			}
		}
		parts = append(parts, strings.Join(fields, ": "))
	}
	return strings.Join(parts, "; ")
}

type redditInfoResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				ID            string `json:"id"`
				Score         int64  `json:"score"`
				Ups           int64  `json:"ups"`
				NumComments   int64  `json:"num_comments"`
				NumCrossposts int64  `json:"num_crossposts"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Metrics reads score and comment count through /api/info.
func (p *RedditPublisher) Metrics(ctx context.Context, userID, postID string) (*Metrics, error) {
	token, err := p.creds.GetValidAccessToken(ctx, userID, social.ProviderReddit)
	if err != nil {
		return nil, err
	}
	id := strings.TrimPrefix(postID, "t3_")

	req, err := apiclient.NewGet(p.apiBase+"/api/info", url.Values{"id": {"t3_" + id}})
	if err != nil {
		return nil, err
	}
	apiclient.SetBearer(req, token)

	var resp redditInfoResponse
	if err := p.api.DoJSON(ctx, "post_info", req, &resp); err != nil {
		return nil, ClassifyReadError(ctx, social.ProviderReddit, err, p.probe(token))
	}
	if len(resp.Data.Children) == 0 {
		return nil, fmt.Errorf("%w: reddit post %s", social.ErrPostNotFound, id)
	}
	d := resp.Data.Children[0].Data
	return &Metrics{
		PostID:   id,
		Likes:    d.Ups,
		Comments: d.NumComments,
		Shares:   d.NumCrossposts,
		Score:    d.Score,
	}, nil
}

func (p *RedditPublisher) probe(token string) ProbeFunc {
	return func(ctx context.Context) error {
		req, err := apiclient.NewGet(p.apiBase+"/api/v1/me", nil)
		if err != nil {
			return err
		}
		apiclient.SetBearer(req, token)
		_, err = p.api.Do(ctx, "me", req)
		return err
	}
}
