package court

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtcase-backend/internal/components/assert"
	"courtcase-backend/internal/components/browser"
	"courtcase-backend/internal/components/captcha"
	"courtcase-backend/internal/components/chrono"
	"courtcase-backend/internal/components/telemetry"

	"github.com/google/uuid"
)

const (
	report_engine_search = "engine.search"
	report_engine_close  = "engine.close"
	report_engine_markup = "engine.markup"
)

const (
	// DefaultSubmitSettle is waited after a submit on top of the session's
	// own click settle.
	DefaultSubmitSettle = time.Second
	markupTimeout       = 5 * time.Second
)

var DefaultCaptchaRejectedMarkers = []string{
	"invalid captcha",
	"incorrect captcha",
	"wrong captcha",
	"captcha mismatch",
}

type Options struct {
	BaseUrl      string
	Selectors    Selectors
	NoRecords    NoRecords
	SubmitSettle time.Duration

	CaptchaPollInterval    time.Duration
	CaptchaMaxAttempts     int
	CaptchaRejectedMarkers []string
}

func DefaultOptions(baseUrl string) Options {
	return Options{
		BaseUrl:                baseUrl,
		Selectors:              DefaultSelectors(),
		NoRecords:              DefaultNoRecords(),
		SubmitSettle:           DefaultSubmitSettle,
		CaptchaPollInterval:    captcha.DefaultPollInterval,
		CaptchaMaxAttempts:     captcha.DefaultMaxAttempts,
		CaptchaRejectedMarkers: DefaultCaptchaRejectedMarkers,
	}
}

// Engine looks up one case per Search call. It holds only read-only
// configuration, concurrent searches share nothing.
type Engine struct {
	sessions   browser.SessionFactory
	strategies []strategy
	time       chrono.API
	tel        telemetry.API
}

func NewEngine(
	opts Options,
	sessions browser.SessionFactory,
	solver captcha.Service,
	time chrono.API,
	tel telemetry.API,
) (Engine, error) {
	assert.NotNil(sessions)
	assert.NotNil(solver)
	assert.NotNil(time)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("court", tel)

	selectors := opts.Selectors.WithDefaults()
	err := selectors.Validate()
	if err != nil {
		return Engine{}, err
	}
	extractor, err := NewExtractor(opts.BaseUrl, opts.NoRecords, tel)
	if err != nil {
		return Engine{}, err
	}
	resolver := captcha.NewResolver(solver, captcha.Options{
		Image:           selectors.CaptchaImage,
		Input:           selectors.CaptchaInput,
		PollInterval:    opts.CaptchaPollInterval,
		MaxAttempts:     opts.CaptchaMaxAttempts,
		RejectedMarkers: opts.CaptchaRejectedMarkers,
	}, time, tel)

	submitSettle := opts.SubmitSettle
	f := forms{
		selectors: selectors,
		resolver:  resolver,
		extractor: extractor,
		tel:       tel,
		settle: func(ctx context.Context) error {
			if submitSettle <= 0 {
				return nil
			}
			return time.Sleep(ctx, submitSettle)
		},
	}

	return Engine{
		sessions: sessions,
		strategies: []strategy{
			partyNameStrategy{forms: f},
			caseNumberStrategy{forms: f},
			judgmentsStrategy{forms: f},
		},
		time: time,
		tel:  tel,
	}, nil
}

// Search runs one lookup and always returns an outcome. The error is non-nil
// only when the browser could not be launched at all, the outcome then has
// status error.
func (e Engine) Search(ctx context.Context, query CaseQuery) (SearchOutcome, error) {
	start := e.time.Now()
	query = query.Normalize()
	outcome := SearchOutcome{
		SearchID: uuid.NewString(),
		Orders:   []OrderDocument{},
	}
	finish := func(status Status, err error) SearchOutcome {
		outcome.Status = status
		if err != nil {
			outcome.ErrorMessage = err.Error()
		}
		outcome.ProcessingTime = e.time.Now().Sub(start)
		e.tel.ReportCount(fmt.Sprintf("search.status.%s", status), 1)
		e.tel.ReportCount("captcha.attempts", int64(outcome.CaptchaAttempts))
		e.tel.ReportDebug("search finished", outcome.SearchID, string(status), outcome.ProcessingTime.String())
		return outcome
	}

	err := query.Validate(start)
	if err != nil {
		e.tel.ReportDebug("rejected query", err.Error())
		return finish(StatusError, err), nil
	}

	session := e.sessions(outcome.SearchID)
	defer func() {
		err := session.Close()
		if err != nil {
			e.tel.ReportWarning(report_engine_close, err, outcome.SearchID)
		}
	}()

	err = session.Open(ctx)
	if err != nil {
		e.tel.ReportBroken(report_engine_search, fmt.Errorf("open session: %w", err), outcome.SearchID)
		var launchErr *browser.LaunchError
		if errors.As(err, &launchErr) {
			return finish(StatusError, err), err
		}
		return finish(StatusError, err), nil
	}

	run := &searchRun{
		id:      outcome.SearchID,
		query:   query,
		session: session,
	}
	name, result, err := e.orchestrate(ctx, run)

	outcome.RawHtml = e.markup(ctx, run)
	outcome.CaptchaAttempts = run.captchaAttempts
	outcome.CaptchaSolved = run.captchaSolved

	status := Classify(err)
	if status == StatusSuccess {
		info := result.CaseInfo
		outcome.CaseInfo = &info
		if result.Orders != nil {
			outcome.Orders = result.Orders
		}
		outcome.Strategy = name
	}
	return finish(status, err), nil
}

// markup reads the current page for diagnostics, even after ctx is done.
func (e Engine) markup(ctx context.Context, run *searchRun) string {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markupTimeout)
	defer cancel()

	markup, err := run.session.CurrentMarkup(ctx)
	if err != nil {
		e.tel.ReportWarning(report_engine_markup, err, run.id)
		return ""
	}
	return markup
}
