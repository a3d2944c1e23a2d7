package publish

import (
	"context"
	"fmt"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/juju/clock"
)

// Credentials is what publishers need from the token layer.
type Credentials interface {
	Connection(ctx context.Context, userID string, provider social.Provider) (*social.Connection, error)
	GetValidAccessToken(ctx context.Context, userID string, provider social.Provider) (string, error)
	OAuth1Credentials(ctx context.Context, userID string, provider social.Provider) (*social.OAuth1Credentials, error)
}

// Publisher posts to and reads from one channel.
type Publisher interface {
	Channel() social.Provider
	Publish(ctx context.Context, userID string, post *Post) (*Result, error)
	Metrics(ctx context.Context, userID, postID string) (*Metrics, error)
}

// Caller dispatches posts to the publisher of their channel. Publishing is
// attempted at most once per scheme; nothing is retried beyond the X
// fallback ladder.
type Caller struct {
	publishers map[social.Provider]Publisher
	clock      clock.Clock
}

// NewCaller creates a Caller over publishers; a nil clock means the wall
// clock.
func NewCaller(clk clock.Clock, publishers ...Publisher) *Caller {
	if clk == nil {
		clk = clock.WallClock
	}
	c := &Caller{publishers: make(map[social.Provider]Publisher, len(publishers)), clock: clk}
	for _, p := range publishers {
		c.publishers[p.Channel()] = p
	}
	return c
}

func (c *Caller) publisher(channel social.Provider) (Publisher, error) {
	p, ok := c.publishers[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", social.ErrUnsupportedProvider, channel)
	}
	return p, nil
}

// Publish validates post and sends it on its channel.
func (c *Caller) Publish(ctx context.Context, userID string, post *Post) (*Result, error) {
	if post == nil {
		return nil, invalid("", "post is required")
	}
	if err := post.Validate(); err != nil {
		return nil, err
	}
	p, err := c.publisher(post.Channel)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With("channel", post.Channel, "user_id", userID)
	res, err := p.Publish(ctx, userID, post)
	if err != nil {
		log.Warn("Publish failed", "error", err, "code", social.ErrorCode(err))
		return nil, err
	}
	log.Info("Published", "post_id", res.PostID, "scheme", res.Scheme)
	return res, nil
}

// Metrics fetches engagement for a previously published post.
func (c *Caller) Metrics(ctx context.Context, userID string, channel social.Provider, postID string) (*Metrics, error) {
	if postID == "" {
		return nil, invalid("post_id", "is required")
	}
	p, err := c.publisher(channel)
	if err != nil {
		return nil, err
	}
	m, err := p.Metrics(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	m.FetchedAt = c.clock.Now().UTC()
	return m, nil
}

// Channels lists the channels with a publisher.
func (c *Caller) Channels() []social.Provider {
	out := make([]social.Provider, 0, len(c.publishers))
	for _, ch := range social.Providers {
		if _, ok := c.publishers[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}
