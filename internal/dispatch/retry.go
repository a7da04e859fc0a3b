package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// RetryRequest is returned by a failure handler that has already changed the
// precondition of the failed call (launched or started an instance) and
// wants the same call issued again.
type RetryRequest struct {
	Remedy string
}

func (r *RetryRequest) Error() string {
	if r.Remedy == "" {
		return "retry requested"
	}
	return "retry requested after " + r.Remedy
}

// RetryAfter requests another attempt. remedy names the side effect that
// makes the next attempt worth issuing, for example "launched primary".
func RetryAfter(remedy string) error {
	return &RetryRequest{Remedy: remedy}
}

// ErrRetryWithoutRemedy is returned by RetryLoop when an attempt asks to be
// retried without naming what changed. Such a handler would retry forever.
var ErrRetryWithoutRemedy = &Error{
	Code: CommandFail,
	Err:  errors.New("retry requested without a remedy"),
}

type retryState int

const (
	pending retryState = iota
	done
)

// RetryLoop runs attempt until it returns something other than a retry
// request and returns that result. The number of passes is not bounded; the
// loop ends early only when ctx is cancelled.
func RetryLoop(ctx context.Context, attempt func(ctx context.Context) error) error {
	log := zerolog.Ctx(ctx)

	var result error
	state := pending
	for n := 1; state == pending; n++ {
		if err := ctx.Err(); err != nil {
			return WithCode(CommandFail, fmt.Errorf("retry abandoned after %d attempts: %w", n-1, err))
		}

		result = attempt(ctx)

		var retry *RetryRequest
		if !errors.As(result, &retry) {
			state = done
			continue
		}
		if retry.Remedy == "" {
			return ErrRetryWithoutRemedy
		}

		log.Debug().Int("attempt", n).Str("remedy", retry.Remedy).Msg("retrying operation")
	}

	return result
}
