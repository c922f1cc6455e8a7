package browser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBestOption(t *testing.T) {
	options := []string{"Select", "ARB.P.", "FAO", "FAO(OS)", "W.P.(C)", "CRL.A."}

	table := []struct {
		want     string
		expected int
	}{
		{want: "FAO", expected: 2},
		{want: "fao(os)", expected: 3},
		{want: "W.P.", expected: 4},
		{want: "CRL.A", expected: 5},
		{want: "", expected: -1},
		{want: "zzzzzz", expected: -1},
	}
	for _, row := range table {
		require.Equal(t, row.expected, BestOption(options, row.want), row.want)
	}
}

func TestBestOptionFuzzy(t *testing.T) {
	options := []string{"Select", "CRL.M.C.", "CS(COMM)"}
	require.Equal(t, 1, BestOption(options, "CRL.MC"))
}
