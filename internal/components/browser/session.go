package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Session owns one isolated browser context for the duration of one search.
//
// Every element operation takes a Locator and acts on the first candidate
// that matches. When nothing matches the operation is a no-op and reports
// false, strategies are expected to tolerate absent UI elements.
//
// note: fault injection point
type Session interface {
	// Open launches the browser context and navigates to the landing page.
	Open(ctx context.Context) error
	// Home navigates back to the landing page.
	Home(ctx context.Context) error
	FindAndClick(ctx context.Context, loc Locator) (bool, error)
	FillField(ctx context.Context, loc Locator, value string) (bool, error)
	// SelectOption picks the option of a <select> whose text best matches value.
	SelectOption(ctx context.Context, loc Locator, value string) (bool, error)
	Exists(ctx context.Context, loc Locator) (bool, error)
	// CurrentMarkup returns the fully rendered HTML of the current page.
	CurrentMarkup(ctx context.Context) (string, error)
	// ScreenshotRegion captures the pixels of the first matching element as png.
	ScreenshotRegion(ctx context.Context, loc Locator) ([]byte, error)
	// Close tears the browser context down, it must be called exactly once.
	Close() error
}

// SessionFactory creates an unopened Session for the search with the given id.
type SessionFactory func(searchId string) Session

var ErrClosed = errors.New("browser session already closed")
var ErrNotOpen = errors.New("browser session not open")
var ErrNoElement = errors.New("no candidate matched")

// NavigationError means the site could not be reached within the navigation timeout.
type NavigationError struct {
	Url string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate to %s: %s", e.Url, e.Err.Error())
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// LaunchError means the browser process could not be started at all.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch browser: %s", e.Err.Error())
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

type Options struct {
	BaseUrl        string
	Headless       bool
	Bin            string
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	AcceptLanguage string
	// NavigationTimeout bounds every page load.
	NavigationTimeout time.Duration
	// ActionTimeout bounds a single click, input or screenshot.
	ActionTimeout time.Duration
	// ClickSettle is how long to wait after a click before reading the page.
	ClickSettle time.Duration
}

const (
	DefaultWindowWidth       = 1920
	DefaultWindowHeight      = 1080
	DefaultNavigationTimeout = 30 * time.Second
	DefaultActionTimeout     = 10 * time.Second
	DefaultClickSettle       = 2 * time.Second
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	DefaultAcceptLanguage    = "en-US,en;q=0.9"
)

func DefaultOptions(baseUrl string) Options {
	return Options{
		BaseUrl:           baseUrl,
		Headless:          true,
		ViewportWidth:     DefaultWindowWidth,
		ViewportHeight:    DefaultWindowHeight,
		UserAgent:         DefaultUserAgent,
		AcceptLanguage:    DefaultAcceptLanguage,
		NavigationTimeout: DefaultNavigationTimeout,
		ActionTimeout:     DefaultActionTimeout,
		ClickSettle:       DefaultClickSettle,
	}
}
