// Package browsertest provides an in-memory browser.Session that serves
// static markup, so strategies can be tested without a browser.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"courtcase-backend/internal/components/browser"

	"github.com/PuerkitoBio/goquery"
)

// SubmitFunc renders the page shown after a submit control is clicked, given
// every field filled and option selected so far.
type SubmitFunc func(fields map[string]string) string

// Session serves Landing as the landing page. Clicking an anchor navigates to
// Pages[href] when present. Clicking a button or submit input renders the
// result of OnSubmit.
type Session struct {
	Landing  string
	Pages    map[string]string
	OnSubmit SubmitFunc

	OpenErr   error
	MarkupErr error

	mu       sync.Mutex
	opened   bool
	markup   string
	fields   map[string]string
	clicks   []string
	closes   int
	homeHits int
}

func NewSession(home string) *Session {
	return &Session{
		Landing: home,
		Pages:   map[string]string{},
		fields:  map[string]string{},
	}
}

// Factory returns a SessionFactory that always hands out s.
func (s *Session) Factory() browser.SessionFactory {
	return func(string) browser.Session { return s }
}

func (s *Session) Open(ctx context.Context) error {
	if s.OpenErr != nil {
		return s.OpenErr
	}
	s.mu.Lock()
	s.opened = true
	s.mu.Unlock()
	return s.Home(ctx)
}

func (s *Session) Home(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return browser.ErrNotOpen
	}
	s.markup = s.Landing
	s.fields = map[string]string{}
	s.homeHits++
	return ctx.Err()
}

func (s *Session) find(loc browser.Locator) (*goquery.Selection, error) {
	if !s.opened {
		return nil, browser.ErrNotOpen
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.markup))
	if err != nil {
		return nil, err
	}

	for _, m := range loc {
		if m.Kind == browser.MatchCSS {
			found := doc.Find(m.Value)
			if found.Length() > 0 {
				return found.First(), nil
			}
			continue
		}

		var match *goquery.Selection
		doc.Find(m.TagName()).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			var candidate string
			if m.Kind == browser.MatchText {
				candidate = el.Text()
			} else {
				value, ok := el.Attr(m.AttrName())
				if !ok {
					return true
				}
				candidate = value
			}
			if m.Accepts(candidate) {
				match = el
				return false
			}
			return true
		})
		if match != nil {
			return match, nil
		}
	}
	return nil, nil
}

func fieldKey(el *goquery.Selection) string {
	if name, ok := el.Attr("name"); ok && name != "" {
		return name
	}
	if id, ok := el.Attr("id"); ok {
		return id
	}
	return goquery.NodeName(el)
}

func (s *Session) FindAndClick(ctx context.Context, loc browser.Locator) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.find(loc)
	if err != nil || el == nil {
		return false, err
	}
	s.clicks = append(s.clicks, loc[0].String())

	if href, ok := el.Attr("href"); ok {
		if page, ok := s.Pages[href]; ok {
			s.markup = page
		}
		return true, ctx.Err()
	}

	kind, _ := el.Attr("type")
	if (goquery.NodeName(el) == "button" || kind == "submit") && s.OnSubmit != nil {
		fields := make(map[string]string, len(s.fields))
		for k, v := range s.fields {
			fields[k] = v
		}
		s.markup = s.OnSubmit(fields)
	}
	return true, ctx.Err()
}

func (s *Session) FillField(ctx context.Context, loc browser.Locator, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.find(loc)
	if err != nil || el == nil {
		return false, err
	}
	s.fields[fieldKey(el)] = value
	return true, ctx.Err()
}

func (s *Session) SelectOption(ctx context.Context, loc browser.Locator, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.find(loc)
	if err != nil || el == nil {
		return false, err
	}
	options := el.Find("option").Map(func(_ int, o *goquery.Selection) string {
		return o.Text()
	})
	idx := browser.BestOption(options, value)
	if idx < 0 {
		return false, nil
	}
	s.fields[fieldKey(el)] = strings.TrimSpace(options[idx])
	return true, ctx.Err()
}

func (s *Session) Exists(ctx context.Context, loc browser.Locator) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.find(loc)
	if err != nil {
		return false, err
	}
	return el != nil, ctx.Err()
}

func (s *Session) CurrentMarkup(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.MarkupErr != nil {
		return "", s.MarkupErr
	}
	if !s.opened {
		return "", browser.ErrNotOpen
	}
	return s.markup, ctx.Err()
}

func (s *Session) ScreenshotRegion(ctx context.Context, loc browser.Locator) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.find(loc)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, browser.ErrNoElement
	}
	return []byte(fmt.Sprintf("png:%s", fieldKey(el))), ctx.Err()
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closes++
	if s.closes > 1 {
		return browser.ErrClosed
	}
	s.opened = false
	return nil
}

// Closes returns how many times Close was called.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Clicks returns the first candidate of every locator that was clicked.
func (s *Session) Clicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicks...)
}

// Field returns the last value written to the field with the given name or id.
func (s *Session) Field(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields[key]
}

// HomeVisits returns how many times the landing page was loaded.
func (s *Session) HomeVisits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.homeHits
}
