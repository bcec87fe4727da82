package upiclient

import (
	"context"
	"time"

	errors "github.com/frahmantamala/upi-sandbox/internal"
	"github.com/frahmantamala/upi-sandbox/internal/core/datamodel/upi"
)

type PollOptions struct {
	MaxAttempts int
	Interval    time.Duration
}

// PollResult is a terminal payment. Success is false for a declined payment.
type PollResult struct {
	Success  bool
	Payment  *upi.Payment
	Attempts int
}

type pollState int

const (
	pollQuery pollState = iota
	pollWait
	pollDone
)

type poller struct {
	client    *Client
	paymentID string
	opts      PollOptions

	state    pollState
	attempts int
	lastErr  error
	result   *PollResult
	err      error
}

func (c *Client) pollOptions(opts PollOptions) PollOptions {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = c.cfg.MaxAttempts
	}
	if opts.Interval <= 0 {
		opts.Interval = c.cfg.PollInterval
	}
	return opts
}

// PollStatus queries the payment until it is captured or failed.
// Transport and 5xx errors are retried within the attempt budget; other
// errors stop polling. When the budget runs out the caller gets the last
// retryable error, or ErrPollTimeout if the payment was still pending.
func (c *Client) PollStatus(ctx context.Context, paymentID string, opts PollOptions) (*PollResult, error) {
	p := &poller{
		client:    c,
		paymentID: paymentID,
		opts:      c.pollOptions(opts),
		state:     pollQuery,
	}
	for p.state != pollDone {
		p.step(ctx)
	}
	return p.result, p.err
}

func (p *poller) step(ctx context.Context) {
	switch p.state {
	case pollQuery:
		p.query(ctx)
	case pollWait:
		p.wait(ctx)
	}
}

func (p *poller) query(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		p.finish(nil, err)
		return
	}

	p.attempts++
	payment, err := p.client.GetPaymentStatus(ctx, p.paymentID)
	switch {
	case err == nil:
		p.lastErr = nil
		if payment.IsTerminal() {
			p.finish(&PollResult{
				Success:  payment.IsCaptured(),
				Payment:  payment,
				Attempts: p.attempts,
			}, nil)
			return
		}
		p.client.logger.Debug("payment pending", "payment_id", p.paymentID, "attempt", p.attempts)
	case errors.IsRetryable(err):
		p.lastErr = err
		p.client.logger.Warn("status check failed, will retry",
			"payment_id", p.paymentID,
			"attempt", p.attempts,
			"error", err)
	default:
		p.finish(nil, err)
		return
	}

	if p.attempts >= p.opts.MaxAttempts {
		if p.lastErr != nil {
			p.finish(nil, p.lastErr)
			return
		}
		p.client.logger.Warn("payment status check timed out", "payment_id", p.paymentID, "attempts", p.attempts)
		p.finish(nil, errors.ErrPollTimeout)
		return
	}
	p.state = pollWait
}

func (p *poller) wait(ctx context.Context) {
	timer := p.client.clock.NewTimer(p.opts.Interval)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		p.state = pollQuery
	case <-ctx.Done():
		p.finish(nil, ctx.Err())
	}
}

func (p *poller) finish(result *PollResult, err error) {
	p.result = result
	p.err = err
	p.state = pollDone
}
