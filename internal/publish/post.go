// Package publish sends posts to connected channels and reads back their
// engagement metrics.
package publish

import (
	"fmt"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/validation"
)

// Scheme is the authorization scheme a request was sent with.
type Scheme string

const (
	SchemeOAuth2 Scheme = "oauth2"
	SchemeOAuth1 Scheme = "oauth1"
)

// Post is one piece of content for one channel.
type Post struct {
	Channel   social.Provider `json:"channel" validate:"required,oneof=twitter instagram reddit"`
	Text      string          `json:"text" validate:"max=40000"`
	Title     string          `json:"title,omitempty" validate:"max=300"`
	Subreddit string          `json:"subreddit,omitempty" validate:"max=21"`
	Link      string          `json:"link,omitempty" validate:"omitempty,url"`
	MediaURLs []string        `json:"media_urls,omitempty" validate:"omitempty,max=4,dive,url"`
}

// Validate checks the generic field rules. Channel specific rules are
// enforced by each publisher.
func (p *Post) Validate() error {
	if err := validation.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", social.ErrInvalidPost, err)
	}
	return nil
}

// Result identifies a published post.
type Result struct {
	Channel social.Provider `json:"channel"`
	PostID  string          `json:"post_id"`
	URL     string          `json:"url,omitempty"`
	Scheme  Scheme          `json:"scheme"`
}

// Metrics is the engagement snapshot of a published post. Fields a channel
// does not report stay zero.
type Metrics struct {
	PostID      string    `json:"post_id"`
	Likes       int64     `json:"likes"`
	Comments    int64     `json:"comments"`
	Shares      int64     `json:"shares"`
	Impressions int64     `json:"impressions"`
	Score       int64     `json:"score"`
	FetchedAt   time.Time `json:"fetched_at"`
}

func invalid(field, message string) error {
	var ve validation.Errors
	ve.Add(field, message)
	return fmt.Errorf("%w: %w", social.ErrInvalidPost, ve)
}
