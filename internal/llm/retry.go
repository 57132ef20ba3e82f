package llm

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v5"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var statusCodeRe = regexp.MustCompile(`status(?:\s+code)?[:=\s]+(\d{3})`)

// FailureClass buckets transport errors by whether retrying can help.
type FailureClass int

const (
	FailureNone FailureClass = iota
	FailureTimeout
	FailureRateLimit
	FailureServer
	FailureClient
	FailureEmpty
)

func (c FailureClass) String() string {
	switch c {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailureRateLimit:
		return "rate_limit"
	case FailureServer:
		return "server"
	case FailureClient:
		return "client"
	case FailureEmpty:
		return "empty"
	}
	return "unknown"
}

func (c FailureClass) Retryable() bool {
	return c == FailureTimeout || c == FailureRateLimit || c == FailureServer
}

// Classify maps an error from a CompletionClient onto a FailureClass.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, ErrEmptyResponse) {
		return FailureEmpty
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FailureTimeout
	}
	if code := statusCode(err); code != 0 {
		return classifyStatus(code)
	}
	if strings.Contains(strings.ToLower(err.Error()), "rate limit") {
		return FailureRateLimit
	}
	return FailureServer
}

func statusCode(err error) int {
	var aerr *anthropic.Error
	if errors.As(err, &aerr) {
		return aerr.StatusCode
	}
	var oerr *openai.APIError
	if errors.As(err, &oerr) {
		return oerr.HTTPStatusCode
	}
	var rerr *openai.RequestError
	if errors.As(err, &rerr) {
		return rerr.HTTPStatusCode
	}
	m := statusCodeRe.FindStringSubmatch(strings.ToLower(err.Error()))
	if len(m) == 2 {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

func classifyStatus(code int) FailureClass {
	switch {
	case code == 429:
		return FailureRateLimit
	case code == 408:
		return FailureTimeout
	case code >= 500:
		return FailureServer
	case code >= 400:
		return FailureClient
	}
	return FailureServer
}

type retryingClient struct {
	next       CompletionClient
	maxTries   uint
	timeout    time.Duration
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

// WithRetry retries retryable transport failures up to maxAttempts total
// attempts with exponential backoff. A positive attemptTimeout bounds each
// attempt on its own, so a timed-out call can still be retried. maxAttempts
// <= 1 returns c unchanged.
func WithRetry(c CompletionClient, maxAttempts int, attemptTimeout time.Duration, logger *zap.Logger) CompletionClient {
	if maxAttempts <= 1 {
		return c
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retryingClient{
		next:     c,
		maxTries: uint(maxAttempts),
		timeout:  attemptTimeout,
		logger:   logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 8 * time.Second
			return b
		},
	}
}

func (r *retryingClient) ModelName() string { return r.next.ModelName() }

func (r *retryingClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	attempt := 0
	op := func() (string, error) {
		attempt++
		start := time.Now()
		actx, cancel := ctx, context.CancelFunc(func() {})
		if r.timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, r.timeout)
		}
		out, err := r.next.Complete(actx, prompt, maxTokens)
		cancel()
		if err == nil {
			return out, nil
		}
		class := Classify(err)
		r.logger.Warn("llm_attempt_transport_error",
			zap.Int("attempt", attempt),
			zap.Stringer("class", class),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
			zap.Error(err),
		)
		if !class.Retryable() {
			return "", backoff.Permanent(err)
		}
		return "", err
	}
	return backoff.Retry(ctx, op, backoff.WithBackOff(r.newBackOff()), backoff.WithMaxTries(r.maxTries))
}
