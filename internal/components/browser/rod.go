package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"courtcase-backend/internal/components/assert"
	"courtcase-backend/internal/components/chrono"
	"courtcase-backend/internal/components/telemetry"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	report_session_open       = "session.open"
	report_session_navigate   = "session.navigate"
	report_session_locate     = "session.locate"
	report_session_click      = "session.click"
	report_session_fill       = "session.fill"
	report_session_select     = "session.select"
	report_session_screenshot = "session.screenshot"
	report_session_close      = "session.close"
)

// RodSession implements Session on a headless chromium driven by go-rod.
type RodSession struct {
	searchId string
	opts     Options
	time     chrono.API
	tel      telemetry.API

	launcher  *launcher.Launcher
	browser   *rod.Browser
	incognito *rod.Browser
	page      *rod.Page
	closed    bool
}

// NewRodSessionFactory returns a SessionFactory producing RodSessions that
// share nothing but their read-only options.
func NewRodSessionFactory(opts Options, time chrono.API, tel telemetry.API) SessionFactory {
	assert.NotEmptyStr(opts.BaseUrl)
	assert.PositiveDuration(opts.NavigationTimeout)
	assert.PositiveDuration(opts.ActionTimeout)
	assert.NotNil(time)
	assert.NotNil(tel)

	return func(searchId string) Session {
		return &RodSession{
			searchId: searchId,
			opts:     opts,
			time:     time,
			tel:      telemetry.NewScopedAPI("browser", tel),
		}
	}
}

func (s *RodSession) Open(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}

	l := launcher.New().
		Headless(s.opts.Headless).
		NoSandbox(true).
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-accelerated-2d-canvas").
		Set("no-first-run").
		Set("no-zygote").
		Set("disable-gpu").
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-blink-features", "AutomationControlled").
		Delete("enable-automation")
	if s.opts.Bin != "" {
		l = l.Bin(s.opts.Bin)
	}

	controlUrl, err := l.Launch()
	if err != nil {
		// Cleanup would wait forever on a process that never started or is
		// not being waited on, so a failed launcher is only killed
		if l.PID() != 0 {
			l.Kill()
		}
		s.tel.ReportBroken(report_session_open, fmt.Errorf("launch: %w", err), s.searchId)
		return &LaunchError{Err: err}
	}
	s.launcher = l

	// the browser itself is not bound to ctx so that Close still works after
	// the caller abandons the search
	s.browser = rod.New().ControlURL(controlUrl)
	err = s.browser.Connect()
	if err != nil {
		s.tel.ReportBroken(report_session_open, fmt.Errorf("connect: %w", err), s.searchId)
		return &LaunchError{Err: err}
	}

	s.incognito, err = s.browser.Incognito()
	if err != nil {
		s.tel.ReportBroken(report_session_open, fmt.Errorf("incognito: %w", err), s.searchId)
		return &LaunchError{Err: err}
	}

	page, err := s.incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.tel.ReportBroken(report_session_open, fmt.Errorf("create page: %w", err), s.searchId)
		return &LaunchError{Err: err}
	}
	s.page = page

	err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.opts.UserAgent,
		AcceptLanguage: s.opts.AcceptLanguage,
	})
	if err != nil {
		return &LaunchError{Err: fmt.Errorf("set user agent: %w", err)}
	}
	_, err = page.SetExtraHeaders([]string{
		"Accept-Language", s.opts.AcceptLanguage,
		"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Cache-Control", "no-cache",
		"Pragma", "no-cache",
	})
	if err != nil {
		return &LaunchError{Err: fmt.Errorf("set extra headers: %w", err)}
	}
	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.opts.ViewportWidth,
		Height:            s.opts.ViewportHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return &LaunchError{Err: fmt.Errorf("set viewport: %w", err)}
	}

	s.tel.ReportDebug("browser session opened", s.searchId)
	return s.Home(ctx)
}

func (s *RodSession) Home(ctx context.Context) error {
	if s.page == nil {
		return ErrNotOpen
	}

	p := s.page.Context(ctx).Timeout(s.opts.NavigationTimeout)
	defer p.CancelTimeout()

	err := p.Navigate(s.opts.BaseUrl)
	if err != nil {
		s.tel.ReportWarning(report_session_navigate, err, s.opts.BaseUrl)
		return &NavigationError{Url: s.opts.BaseUrl, Err: err}
	}
	err = p.WaitLoad()
	if err != nil {
		s.tel.ReportWarning(report_session_navigate, fmt.Errorf("wait load: %w", err), s.opts.BaseUrl)
		return &NavigationError{Url: s.opts.BaseUrl, Err: err}
	}
	return nil
}

// locate returns the first element matched by the candidates in order, or
// nil if none match. It never waits for elements to appear.
func (s *RodSession) locate(ctx context.Context, loc Locator) (*rod.Element, error) {
	if s.page == nil {
		return nil, ErrNotOpen
	}
	page := s.page.Context(ctx)

	for _, m := range loc {
		if m.Kind == MatchCSS {
			elements, err := page.Elements(m.Value)
			if err != nil {
				s.tel.ReportWarning(report_session_locate, err, m.String())
				continue
			}
			if len(elements) > 0 {
				return elements.First(), nil
			}
			continue
		}

		elements, err := page.Elements(m.TagName())
		if err != nil {
			s.tel.ReportWarning(report_session_locate, err, m.String())
			continue
		}
		for _, el := range elements {
			var candidate string
			if m.Kind == MatchText {
				candidate, err = el.Text()
				if err != nil {
					continue
				}
			} else {
				attr, err := el.Attribute(m.AttrName())
				if err != nil || attr == nil {
					continue
				}
				candidate = *attr
			}
			if m.Accepts(candidate) {
				return el, nil
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *RodSession) settle(ctx context.Context) {
	if s.opts.ClickSettle > 0 {
		_ = s.time.Sleep(ctx, s.opts.ClickSettle)
	}
	p := s.page.Context(ctx).Timeout(s.opts.NavigationTimeout)
	defer p.CancelTimeout()
	err := p.WaitLoad()
	if err != nil {
		s.tel.ReportDebug("wait load after click", err)
	}
}

func (s *RodSession) FindAndClick(ctx context.Context, loc Locator) (bool, error) {
	el, err := s.locate(ctx, loc)
	if err != nil || el == nil {
		return false, err
	}

	err = el.Context(ctx).Timeout(s.opts.ActionTimeout).Click(proto.InputMouseButtonLeft, 1)
	if err != nil {
		s.tel.ReportWarning(report_session_click, err)
		return false, fmt.Errorf("click: %w", err)
	}
	s.settle(ctx)
	return true, nil
}

func (s *RodSession) FillField(ctx context.Context, loc Locator, value string) (bool, error) {
	el, err := s.locate(ctx, loc)
	if err != nil || el == nil {
		return false, err
	}

	el = el.Context(ctx).Timeout(s.opts.ActionTimeout)
	err = el.SelectAllText()
	if err != nil {
		s.tel.ReportDebug("select existing text", err)
	}
	err = el.Input(value)
	if err != nil {
		s.tel.ReportWarning(report_session_fill, err)
		return false, fmt.Errorf("input: %w", err)
	}
	return true, nil
}

func (s *RodSession) SelectOption(ctx context.Context, loc Locator, value string) (bool, error) {
	el, err := s.locate(ctx, loc)
	if err != nil || el == nil {
		return false, err
	}
	el = el.Context(ctx).Timeout(s.opts.ActionTimeout)

	options, err := el.Elements("option")
	if err != nil {
		s.tel.ReportWarning(report_session_select, fmt.Errorf("list options: %w", err))
		return false, fmt.Errorf("list options: %w", err)
	}
	texts := make([]string, len(options))
	for i, o := range options {
		texts[i], _ = o.Text()
	}

	idx := BestOption(texts, value)
	if idx < 0 {
		s.tel.ReportWarning(report_session_select, fmt.Errorf("no option resembles %q", value), len(texts))
		return false, nil
	}

	err = el.Select([]string{strings.TrimSpace(texts[idx])}, true, rod.SelectorTypeText)
	if err != nil {
		s.tel.ReportWarning(report_session_select, err, texts[idx])
		return false, fmt.Errorf("select option: %w", err)
	}
	return true, nil
}

func (s *RodSession) Exists(ctx context.Context, loc Locator) (bool, error) {
	el, err := s.locate(ctx, loc)
	return el != nil, err
}

func (s *RodSession) CurrentMarkup(ctx context.Context) (string, error) {
	if s.page == nil {
		return "", ErrNotOpen
	}
	return s.page.Context(ctx).HTML()
}

func (s *RodSession) ScreenshotRegion(ctx context.Context, loc Locator) ([]byte, error) {
	el, err := s.locate(ctx, loc)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, ErrNoElement
	}

	img, err := el.Context(ctx).
		Timeout(s.opts.ActionTimeout).
		Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		s.tel.ReportBroken(report_session_screenshot, err)
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return img, nil
}

func (s *RodSession) Close() error {
	if s.closed {
		s.tel.ReportBroken(report_session_close, ErrClosed, s.searchId)
		return ErrClosed
	}
	s.closed = true

	var errlist []error
	if s.browser != nil {
		err := s.browser.Close()
		if err != nil {
			errlist = append(errlist, err)
		}
	}
	if s.launcher != nil {
		// kills the process tree even if the cdp connection is gone
		s.launcher.Kill()
		s.launcher.Cleanup()
	}

	err := errors.Join(errlist...)
	if err != nil {
		s.tel.ReportWarning(report_session_close, err, s.searchId)
	}
	s.tel.ReportDebug("browser session closed", s.searchId, time.Now().Format(time.RFC3339))
	return err
}
