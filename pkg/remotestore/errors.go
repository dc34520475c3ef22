package remotestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/rollcall/internal/apperror"
	"github.com/redis/go-redis/v9"
)

// classify maps a go-redis failure onto the error taxonomy.
//
// A Redis error reply means the server received and refused the command, so it
// is a REJECTED write. Anything else (dial failures, timeouts, closed pools,
// expired deadlines) means the server could not be reached: CONNECTIVITY.
// redis.Nil, a cancelled caller context and errors that already carry a code
// pass through unchanged.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
		return err
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return apperror.Wrap(err, apperror.CodeRejected, fmt.Sprintf("%s: rejected by remote store", op))
	}

	return apperror.Wrap(err, apperror.CodeConnectivity, fmt.Sprintf("%s: remote store unreachable", op))
}
