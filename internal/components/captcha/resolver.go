package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"courtcase-backend/internal/components/assert"
	"courtcase-backend/internal/components/browser"
	"courtcase-backend/internal/components/chrono"
	"courtcase-backend/internal/components/telemetry"
)

const (
	report_resolver_detect = "resolver.detect"
	report_resolver_submit = "resolver.submit"
	report_resolver_poll   = "resolver.poll"
	report_resolver_inject = "resolver.inject"
	report_resolver_verify = "resolver.verify"
)

type State int

const (
	StateDetected State = iota
	StateSubmitted
	StatePolling
	StateSolved
	StateExpired
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDetected:
		return "DETECTED"
	case StateSubmitted:
		return "SUBMITTED"
	case StatePolling:
		return "POLLING"
	case StateSolved:
		return "SOLVED"
	case StateExpired:
		return "EXPIRED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSolved || s == StateExpired || s == StateFailed
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateDetected:
		return to == StateSubmitted || to == StateFailed
	case StateSubmitted:
		return to == StatePolling || to == StateFailed
	case StatePolling:
		return to == StateSolved || to == StateExpired || to == StateFailed
	default:
		return false
	}
}

// Challenge is one detected CAPTCHA, it lives only as long as Resolve.
type Challenge struct {
	Image    []byte
	JobId    string
	Attempts int
	State    State
}

func (c *Challenge) transition(to State) {
	if !isAllowedTransition(c.State, to) {
		panic(fmt.Sprintf("disallowed captcha transition: %s -> %s", c.State, to))
	}
	c.State = to
}

// Page is the part of a browser session the resolver needs.
type Page interface {
	Exists(ctx context.Context, loc browser.Locator) (bool, error)
	ScreenshotRegion(ctx context.Context, loc browser.Locator) ([]byte, error)
	FillField(ctx context.Context, loc browser.Locator, value string) (bool, error)
	CurrentMarkup(ctx context.Context) (string, error)
}

const (
	DefaultPollInterval = 10 * time.Second
	DefaultMaxAttempts  = 30
)

type Options struct {
	// Image locates the challenge image on the page.
	Image browser.Locator
	// Input locates the field the solution is typed into.
	Input        browser.Locator
	PollInterval time.Duration
	MaxAttempts  int
	// RejectedMarkers are page texts (case-insensitive) meaning the site did
	// not accept a submitted solution.
	RejectedMarkers []string
}

// Outcome summarizes one Resolve call.
type Outcome struct {
	Detected bool
	Solved   bool
	Attempts int
	JobId    string
	State    State
}

type Resolver struct {
	service Service
	opts    Options
	time    chrono.API
	tel     telemetry.API
}

func NewResolver(service Service, opts Options, time chrono.API, tel telemetry.API) Resolver {
	assert.NotNil(service)
	assert.NotNil(time)
	assert.NotNil(tel)
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	return Resolver{
		service: service,
		opts:    opts,
		time:    time,
		tel:     telemetry.NewScopedAPI("captcha", tel),
	}
}

func (r Resolver) outcome(c *Challenge) Outcome {
	return Outcome{
		Detected: true,
		Solved:   c.State == StateSolved,
		Attempts: c.Attempts,
		JobId:    c.JobId,
		State:    c.State,
	}
}

// Resolve solves the challenge on the current page, if there is one. With no
// challenge on the page it returns a zero Outcome and leaves the page alone.
func (r Resolver) Resolve(ctx context.Context, page Page) (Outcome, error) {
	present, err := page.Exists(ctx, r.opts.Image)
	if err != nil {
		r.tel.ReportWarning(report_resolver_detect, err)
		return Outcome{}, fmt.Errorf("detect captcha: %w", err)
	}
	if !present {
		return Outcome{}, nil
	}

	c := &Challenge{State: StateDetected}
	r.tel.ReportDebug("captcha detected")

	c.Image, err = page.ScreenshotRegion(ctx, r.opts.Image)
	if err != nil {
		c.transition(StateFailed)
		r.tel.ReportBroken(report_resolver_detect, fmt.Errorf("capture image: %w", err))
		return r.outcome(c), &SubmitError{Err: fmt.Errorf("capture image: %w", err)}
	}

	c.JobId, err = r.service.Submit(ctx, c.Image)
	if err != nil {
		c.transition(StateFailed)
		r.tel.ReportWarning(report_resolver_submit, err)
		return r.outcome(c), &SubmitError{Err: err}
	}
	c.transition(StateSubmitted)

	solution, err := r.poll(ctx, c)
	if err != nil {
		return r.outcome(c), err
	}

	filled, err := page.FillField(ctx, r.opts.Input, solution)
	if err == nil && !filled {
		err = fmt.Errorf("no captcha input on page")
	}
	if err != nil {
		c.transition(StateFailed)
		r.tel.ReportBroken(report_resolver_inject, err, c.JobId)
		return r.outcome(c), &InputError{Err: err}
	}
	c.transition(StateSolved)

	r.tel.ReportDebug("captcha solved", c.JobId, c.Attempts)
	return r.outcome(c), nil
}

// poll waits PollInterval before every request, up to MaxAttempts requests.
// On success the challenge stays in POLLING until the answer is typed in.
func (r Resolver) poll(ctx context.Context, c *Challenge) (string, error) {
	c.transition(StatePolling)

	for c.Attempts < r.opts.MaxAttempts {
		err := r.time.Sleep(ctx, r.opts.PollInterval)
		if err != nil {
			c.transition(StateFailed)
			return "", err
		}

		c.Attempts++
		solution, err := r.service.Poll(ctx, c.JobId)
		switch {
		case err == nil:
			solution = strings.TrimSpace(solution)
			if solution == "" {
				c.transition(StateFailed)
				err := &PollError{JobId: c.JobId, Err: fmt.Errorf("empty solution")}
				r.tel.ReportWarning(report_resolver_poll, err)
				return "", err
			}
			return solution, nil
		case errors.Is(err, ErrNotReady):
			continue
		case isTerminal(err):
			c.transition(StateFailed)
			r.tel.ReportWarning(report_resolver_poll, err, c.JobId, c.Attempts)
			return "", &PollError{JobId: c.JobId, Err: err}
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				c.transition(StateFailed)
				return "", ctxErr
			}
			// transport errors cost an attempt but do not end the challenge
			r.tel.ReportWarning(report_resolver_poll, err, c.JobId, c.Attempts)
		}
	}

	c.transition(StateExpired)
	err := &TimeoutError{JobId: c.JobId, Attempts: c.Attempts}
	r.tel.ReportWarning(report_resolver_poll, err)
	return "", err
}

func isTerminal(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr) || errors.Is(err, ErrNoCredential)
}

// Verify checks the page after a form carrying a solved challenge was
// submitted. When the site rejected the solution the job is reported as bad
// to the service and a *RejectedError is returned.
func (r Resolver) Verify(ctx context.Context, page Page, out Outcome) error {
	if !out.Solved || len(r.opts.RejectedMarkers) == 0 {
		return nil
	}
	markup, err := page.CurrentMarkup(ctx)
	if err != nil {
		r.tel.ReportWarning(report_resolver_verify, err)
		return nil
	}
	lower := strings.ToLower(markup)
	for _, marker := range r.opts.RejectedMarkers {
		if marker == "" || !strings.Contains(lower, strings.ToLower(marker)) {
			continue
		}
		if err := r.service.ReportBad(ctx, out.JobId); err != nil {
			r.tel.ReportWarning(report_resolver_verify, fmt.Errorf("report bad: %w", err), out.JobId)
		}
		return &RejectedError{JobId: out.JobId}
	}
	return nil
}
