package browser

import (
	"fmt"
	"strings"
)

type MatcherKind string

const (
	// MatchCSS matches the first element found by a css selector.
	MatchCSS MatcherKind = "css"
	// MatchText matches the first Tag element whose visible text contains Value.
	MatchText MatcherKind = "text"
	// MatchHref matches the first Tag element whose href contains Value.
	MatchHref MatcherKind = "href"
	// MatchAttr matches the first Tag element whose Attr attribute contains Value.
	MatchAttr MatcherKind = "attr"
)

// Matcher is one candidate way of finding an element. Matchers are plain data
// so that the candidates for every UI element can live in configuration.
type Matcher struct {
	Kind  MatcherKind `json:"kind"`
	Tag   string      `json:"tag,omitempty"`
	Attr  string      `json:"attr,omitempty"`
	Value string      `json:"value"`
}

// Locator is an ordered list of candidates, the first candidate that has a
// structural match on the page wins.
type Locator []Matcher

func CSS(selector string) Matcher {
	return Matcher{Kind: MatchCSS, Value: selector}
}

func LinkText(text string) Matcher {
	return Matcher{Kind: MatchText, Tag: "a", Value: text}
}

func LinkHref(substr string) Matcher {
	return Matcher{Kind: MatchHref, Tag: "a", Value: substr}
}

func InputName(substr string) Matcher {
	return Matcher{Kind: MatchAttr, Tag: "input", Attr: "name", Value: substr}
}

// TagName is the element tag scanned by non-css matchers.
func (m Matcher) TagName() string {
	if m.Tag != "" {
		return m.Tag
	}
	if m.Kind == MatchAttr {
		return "input"
	}
	return "a"
}

// AttrName is the attribute read by href/attr matchers.
func (m Matcher) AttrName() string {
	if m.Kind == MatchHref {
		return "href"
	}
	return m.Attr
}

// Accepts reports whether a scanned candidate value satisfies the matcher.
// Comparison is case-insensitive substring containment.
func (m Matcher) Accepts(candidate string) bool {
	if m.Value == "" {
		return false
	}
	return strings.Contains(
		strings.ToLower(candidate),
		strings.ToLower(m.Value),
	)
}

func (m Matcher) Validate() error {
	switch m.Kind {
	case MatchCSS, MatchText, MatchHref:
	case MatchAttr:
		if m.Attr == "" {
			return fmt.Errorf("attr matcher %q has no attr", m.Value)
		}
	default:
		return fmt.Errorf("unknown matcher kind %q", m.Kind)
	}
	if strings.TrimSpace(m.Value) == "" {
		return fmt.Errorf("%s matcher has an empty value", m.Kind)
	}
	return nil
}

func (m Matcher) String() string {
	switch m.Kind {
	case MatchCSS:
		return fmt.Sprintf("css(%s)", m.Value)
	case MatchAttr:
		return fmt.Sprintf("%s[%s*=%s]", m.TagName(), m.Attr, m.Value)
	default:
		return fmt.Sprintf("%s(%s ~ %s)", m.Kind, m.TagName(), m.Value)
	}
}

func (l Locator) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("locator has no candidates")
	}
	for i, m := range l {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("candidate %d: %w", i, err)
		}
	}
	return nil
}
