// Package retry wraps remote calls with exponential backoff, retrying
// failures that classify as transient (rate limiting) and returning
// everything else immediately.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Policy holds the exponential backoff parameters. Retries are unbounded;
// only the interval growth is configurable.
type Policy struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// DefaultPolicy is used by Do. Tests swap it for millisecond intervals.
var DefaultPolicy = Policy{
	InitialInterval: backoff.DefaultInitialInterval,
	Multiplier:      backoff.DefaultMultiplier,
	MaxInterval:     backoff.DefaultMaxInterval,
}

func (p Policy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// Do invokes op until it succeeds or fails with an error that transient
// reports false for. Transient failures are retried with exponential backoff
// and logged; a permanent failure is returned as-is after a single attempt.
func Do[T any](ctx context.Context, description string, transient func(error) bool, op func() (T, error)) (T, error) {
	wrapped := func() (T, error) {
		v, err := op()
		if err != nil && !transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, _ time.Duration) {
		log.Info().Msgf("%s failed due to %v. Retrying", description, err)
	}
	return backoff.RetryNotifyWithData(wrapped, DefaultPolicy.backOff(ctx), notify)
}

const (
	jsonThrottlingCode = "ThrottlingException"
	xmlThrottlingCode  = "Throttling"
)

// ThrottledAPIError reports whether err is a rate-limit rejection from a
// JSON-protocol AWS API (ECS, ECR). The error code must match exactly.
func ThrottledAPIError(err error) bool {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode() == jsonThrottlingCode
	}
	return strings.Contains(err.Error(), `"__type":"ThrottlingException"`)
}

// ThrottledXMLError reports whether err is a rate-limit rejection from a
// query-protocol AWS API (ELBv2), which reports throttling under a different
// code embedded in an XML body.
func ThrottledXMLError(err error) bool {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode() == xmlThrottlingCode
	}
	return strings.Contains(err.Error(), "<Code>Throttling</Code>")
}
