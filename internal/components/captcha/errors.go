package captcha

import (
	"errors"
	"fmt"
)

// ErrCaptcha is matched by every error this package returns for a challenge
// that could not be solved, errors.Is(err, ErrCaptcha) is how callers tell a
// CAPTCHA failure apart from any other failure.
var ErrCaptcha = errors.New("CAPTCHA failure")

// ErrNotReady is returned by Service.Poll while the job is still being solved.
var ErrNotReady = errors.New("CAPTCHA not ready")

// ErrNoCredential means no api key is configured for the solving service.
var ErrNoCredential = errors.New("no CAPTCHA solver api key configured")

// ServiceError is an error the solving service reported about a request.
type ServiceError struct {
	Code string
	Text string
}

func (e *ServiceError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("solver error %s: %s", e.Code, e.Text)
	}
	return fmt.Sprintf("solver error %s", e.Code)
}

// SubmitError means the challenge image never reached the solving service.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("CAPTCHA submit failed: %s", e.Err.Error())
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

func (e *SubmitError) Is(target error) bool {
	return target == ErrCaptcha
}

// TimeoutError means the polling budget ran out before a solution arrived.
type TimeoutError struct {
	JobId    string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("CAPTCHA solution timed out after %d attempts (job %s)", e.Attempts, e.JobId)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrCaptcha
}

// PollError means the solving service reported a terminal error for the job.
type PollError struct {
	JobId string
	Err   error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("CAPTCHA poll failed (job %s): %s", e.JobId, e.Err.Error())
}

func (e *PollError) Unwrap() error {
	return e.Err
}

func (e *PollError) Is(target error) bool {
	return target == ErrCaptcha
}

// RejectedError means the site refused the solution that was typed in.
type RejectedError struct {
	JobId string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("CAPTCHA solution rejected by site (job %s)", e.JobId)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrCaptcha
}

// InputError means the solution could not be typed into the page.
type InputError struct {
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("CAPTCHA input failed: %s", e.Err.Error())
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func (e *InputError) Is(target error) bool {
	return target == ErrCaptcha
}
