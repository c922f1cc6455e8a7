package browser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatcherAccepts(t *testing.T) {
	table := []struct {
		matcher   Matcher
		candidate string
		expected  bool
	}{
		{matcher: LinkText("order information"), candidate: "Order Information System", expected: true},
		{matcher: LinkHref("judgment"), candidate: "/app/latest-judgments", expected: true},
		{matcher: InputName("party"), candidate: "party_name", expected: true},
		{matcher: InputName("party"), candidate: "case_number", expected: false},
		{matcher: Matcher{Kind: MatchText, Value: ""}, candidate: "anything", expected: false},
	}
	for _, row := range table {
		require.Equal(t, row.expected, row.matcher.Accepts(row.candidate), row.matcher.String())
	}
}

func TestMatcherDefaults(t *testing.T) {
	require.Equal(t, "a", LinkText("x").TagName())
	require.Equal(t, "href", LinkHref("x").AttrName())
	require.Equal(t, "input", Matcher{Kind: MatchAttr, Attr: "name", Value: "x"}.TagName())
	require.Equal(t, "select", Matcher{Kind: MatchAttr, Tag: "select", Attr: "name", Value: "x"}.TagName())
}

func TestLocatorFromConfig(t *testing.T) {
	var loc Locator
	err := json.Unmarshal([]byte(`[
		{"kind": "css", "value": "img[src*=\"captcha\"]"},
		{"kind": "attr", "tag": "input", "attr": "name", "value": "captcha"}
	]`), &loc)
	require.NoError(t, err)
	require.NoError(t, loc.Validate())
	require.Equal(t, CSS(`img[src*="captcha"]`), loc[0])
	require.Equal(t, InputName("captcha"), loc[1])
}

func TestLocatorValidate(t *testing.T) {
	require.Error(t, Locator{}.Validate())
	require.Error(t, Locator{{Kind: "xpath", Value: "//a"}}.Validate())
	require.Error(t, Locator{{Kind: MatchAttr, Value: "x"}}.Validate())
	require.Error(t, Locator{CSS("  ")}.Validate())
	require.NoError(t, Locator{CSS("#captcha"), LinkText("Download")}.Validate())
}
