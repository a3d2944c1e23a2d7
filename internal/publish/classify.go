package publish

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
)

// ProbeFunc checks whether the credentials used for a read are still valid,
// usually by calling a cheap identity endpoint.
type ProbeFunc func(ctx context.Context) error

// ClassifyReadError turns a failed read on a specific post into one of
// social.ErrPostNotFound or social.ErrAuthFailed where possible.
//
// A 404 is a deleted post. A 401 is ambiguous: if probe succeeds the token is
// fine and the post is treated as gone; if probe also gets a 401 the
// credentials are dead. The check is best effort, a token revoked between
// the two calls is misread as a missing post.
func ClassifyReadError(ctx context.Context, channel social.Provider, err error, probe ProbeFunc) error {
	log := logger.FromContext(ctx).With("channel", channel)

	switch social.StatusCode(err) {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", social.ErrPostNotFound, err)
	case http.StatusUnauthorized:
	default:
		return err
	}

	perr := probe(ctx)
	switch {
	case perr == nil:
		reclassified := social.NewAmbiguousNotFound(err)
		log.Warn("Reclassified 401 on post read as not found",
			"original_error", err, "reclassified_error", reclassified)
		return reclassified
	case social.StatusCode(perr) == http.StatusUnauthorized:
		reclassified := fmt.Errorf("%w: %w", social.ErrAuthFailed, err)
		log.Warn("Post read rejected and token probe failed",
			"original_error", err, "reclassified_error", reclassified, "probe_error", perr)
		return reclassified
	default:
		log.Warn("Could not verify token after 401 on post read",
			"original_error", err, "probe_error", perr)
		return err
	}
}
