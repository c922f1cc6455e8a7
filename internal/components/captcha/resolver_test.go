package captcha

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"courtcase-backend/internal/components/browser"
	"courtcase-backend/internal/components/browser/browsertest"
	"courtcase-backend/internal/components/chrono"
	"courtcase-backend/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

// fakeService answers polls from a script, the last entry repeats forever.
type fakeService struct {
	submitErr error
	polls     []pollAnswer
	pollCalls int
	badJobs   []string
}

type pollAnswer struct {
	text string
	err  error
}

func (f *fakeService) Submit(ctx context.Context, image []byte) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}
	return "job-1", nil
}

func (f *fakeService) Poll(ctx context.Context, jobId string) (string, error) {
	idx := f.pollCalls
	if idx >= len(f.polls) {
		idx = len(f.polls) - 1
	}
	f.pollCalls++
	return f.polls[idx].text, f.polls[idx].err
}

func (f *fakeService) ReportBad(ctx context.Context, jobId string) error {
	f.badJobs = append(f.badJobs, jobId)
	return nil
}

const challengePage = `<html><body>
<form>
	<img id="captcha_image" src="/captcha.php">
	<input name="captcha_code">
	<button type="submit">Go</button>
</form>
</body></html>`

var testOptions = Options{
	Image:           browser.Locator{browser.CSS("#captcha_image"), browser.CSS(`img[src*="captcha"]`)},
	Input:           browser.Locator{browser.InputName("captcha")},
	RejectedMarkers: []string{"invalid captcha"},
}

func setupResolver(t testing.TB, service Service, markup string) (Resolver, *browsertest.Session, *chrono.FakeImpl) {
	clock := chrono.NewFakeImpl(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	resolver := NewResolver(service, testOptions, clock, telemetry.NewRecorderAPI())

	page := browsertest.NewSession(markup)
	err := page.Open(context.Background())
	require.NoError(t, err)
	return resolver, page, clock
}

func TestResolveSolved(t *testing.T) {
	service := &fakeService{polls: []pollAnswer{
		{err: ErrNotReady},
		{err: ErrNotReady},
		{text: " x7k2p "},
	}}
	resolver, page, clock := setupResolver(t, service, challengePage)

	out, err := resolver.Resolve(context.Background(), page)
	require.NoError(t, err)
	require.True(t, out.Detected)
	require.True(t, out.Solved)
	require.Equal(t, StateSolved, out.State)
	require.Equal(t, 3, out.Attempts)
	require.Equal(t, "job-1", out.JobId)
	require.Equal(t, "x7k2p", page.Field("captcha_code"))

	// every poll is preceded by the interval
	require.Equal(t, []time.Duration{
		DefaultPollInterval,
		DefaultPollInterval,
		DefaultPollInterval,
	}, clock.Sleeps())
}

func TestResolveNoChallenge(t *testing.T) {
	service := &fakeService{}
	resolver, page, clock := setupResolver(t, service, `<html><body><input name="party"></body></html>`)

	out, err := resolver.Resolve(context.Background(), page)
	require.NoError(t, err)
	require.Equal(t, Outcome{}, out)
	require.Zero(t, service.pollCalls)
	require.Empty(t, clock.Sleeps())
	require.Empty(t, page.Field("captcha_code"))
}

func TestResolveFailures(t *testing.T) {
	table := []struct {
		name         string
		service      *fakeService
		expectState  State
		expectPolls  int
		expectTarget any
	}{
		{
			name:         "submit failure",
			service:      &fakeService{submitErr: fmt.Errorf("connection refused")},
			expectState:  StateFailed,
			expectPolls:  0,
			expectTarget: new(*SubmitError),
		},
		{
			name:         "missing api key",
			service:      &fakeService{submitErr: ErrNoCredential},
			expectState:  StateFailed,
			expectPolls:  0,
			expectTarget: new(*SubmitError),
		},
		{
			name:         "never ready",
			service:      &fakeService{polls: []pollAnswer{{err: ErrNotReady}}},
			expectState:  StateExpired,
			expectPolls:  DefaultMaxAttempts,
			expectTarget: new(*TimeoutError),
		},
		{
			name: "service error",
			service: &fakeService{polls: []pollAnswer{
				{err: ErrNotReady},
				{err: &ServiceError{Code: "ERROR_CAPTCHA_UNSOLVABLE"}},
			}},
			expectState:  StateFailed,
			expectPolls:  2,
			expectTarget: new(*PollError),
		},
		{
			name: "transport errors consume attempts",
			service: &fakeService{polls: []pollAnswer{
				{err: fmt.Errorf("fetch: connection reset")},
			}},
			expectState:  StateExpired,
			expectPolls:  DefaultMaxAttempts,
			expectTarget: new(*TimeoutError),
		},
	}

	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			resolver, page, _ := setupResolver(t, test.service, challengePage)

			out, err := resolver.Resolve(context.Background(), page)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrCaptcha)
			require.ErrorAs(t, err, test.expectTarget)
			require.Contains(t, err.Error(), "CAPTCHA")

			require.True(t, out.Detected)
			require.False(t, out.Solved)
			require.Equal(t, test.expectState, out.State)
			require.Equal(t, test.expectPolls, out.Attempts)
			require.Equal(t, test.expectPolls, test.service.pollCalls)
			require.Empty(t, page.Field("captcha_code"))
		})
	}
}

func TestResolveMissingInput(t *testing.T) {
	service := &fakeService{polls: []pollAnswer{{text: "abc"}}}
	resolver, page, _ := setupResolver(t, service, `<html><body><img id="captcha_image"></body></html>`)

	out, err := resolver.Resolve(context.Background(), page)
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	require.ErrorIs(t, err, ErrCaptcha)
	require.Equal(t, StateFailed, out.State)
	require.Equal(t, 1, out.Attempts)
}

func TestResolveCancelled(t *testing.T) {
	service := &fakeService{polls: []pollAnswer{{err: ErrNotReady}}}
	resolver, page, _ := setupResolver(t, service, challengePage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := resolver.Resolve(ctx, page)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrCaptcha))
}

func TestVerify(t *testing.T) {
	service := &fakeService{polls: []pollAnswer{{text: "abc"}}}
	resolver, page, _ := setupResolver(t, service, challengePage)

	out, err := resolver.Resolve(context.Background(), page)
	require.NoError(t, err)

	page.OnSubmit = func(map[string]string) string {
		return `<html><body><p>Invalid Captcha, please try again</p></body></html>`
	}
	_, err = page.FindAndClick(context.Background(), browser.Locator{browser.CSS("button")})
	require.NoError(t, err)

	err = resolver.Verify(context.Background(), page, out)
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	require.ErrorIs(t, err, ErrCaptcha)
	require.Equal(t, []string{"job-1"}, service.badJobs)

	// nothing to verify when no challenge was solved
	err = resolver.Verify(context.Background(), page, Outcome{})
	require.NoError(t, err)
	require.Len(t, service.badJobs, 1)
}

func TestStateTransitions(t *testing.T) {
	require.True(t, isAllowedTransition(StateDetected, StateSubmitted))
	require.True(t, isAllowedTransition(StatePolling, StateExpired))
	require.False(t, isAllowedTransition(StateSolved, StatePolling))
	require.False(t, isAllowedTransition(StateDetected, StateSolved))

	for _, s := range []State{StateSolved, StateExpired, StateFailed} {
		require.True(t, s.Terminal(), s.String())
	}
	require.False(t, StatePolling.Terminal())
}
