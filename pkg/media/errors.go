package media

import (
	"net/http"

	"github.com/twitchtv/twirp"

	"github.com/voxgate/callgateway/internal/core"
)

// mapStatus implements §4.2's status → error kind table, the fallback used
// when a non-2xx response doesn't carry a well-formed Twirp error body (for
// instance a 502 from an intermediate proxy rather than the media server
// itself).
func mapStatus(status int) core.ErrorCode {
	switch {
	case status == http.StatusBadRequest:
		return core.ErrValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.ErrAuth
	case status == http.StatusNotFound:
		return core.ErrNotFound
	case status == http.StatusTooManyRequests:
		return core.ErrRateLimit
	case status >= 500:
		return core.ErrServerError
	default:
		return core.ErrInternal
	}
}

// mapTwirpCode maps a Twirp error code to §4.2's error kind table.
func mapTwirpCode(code twirp.ErrorCode) core.ErrorCode {
	switch code {
	case twirp.InvalidArgument, twirp.Malformed, twirp.OutOfRange:
		return core.ErrValidation
	case twirp.Unauthenticated, twirp.PermissionDenied:
		return core.ErrAuth
	case twirp.NotFound, twirp.BadRoute:
		return core.ErrNotFound
	case twirp.ResourceExhausted:
		return core.ErrRateLimit
	case twirp.Unavailable, twirp.DeadlineExceeded:
		return core.ErrConnection
	case twirp.Canceled:
		return core.ErrCancelled
	case twirp.Internal, twirp.DataLoss, twirp.Aborted, twirp.FailedPrecondition, twirp.Unimplemented, twirp.Unknown:
		return core.ErrServerError
	default:
		return core.ErrInternal
	}
}
