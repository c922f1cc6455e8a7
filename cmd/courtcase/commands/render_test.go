package commands

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"courtcase-backend/internal/querylog"
	"courtcase-backend/internal/scrapers/court"

	"github.com/stretchr/testify/require"
)

var renderQuery = court.CaseQuery{CaseType: "FAO", CaseNumber: "12345", FilingYear: 2023}

func TestRenderOutcome(t *testing.T) {
	var out bytes.Buffer
	renderOutcome(&out, renderQuery, court.SearchOutcome{
		SearchID: "b5c1",
		Status:   court.StatusSuccess,
		Strategy: court.StrategyJudgments,
		CaseInfo: &court.CaseRecord{CaseNumber: "12345", CaseType: "FAO", Status: "Found in judgments"},
		Orders: []court.OrderDocument{
			{Title: "Judgment for FAO 12345/2023", Url: "https://court.example.gov.in/docs/j1.pdf", Date: "01-02-2024", Type: court.OrderTypeJudgment},
		},
		CaptchaSolved:   true,
		CaptchaAttempts: 2,
		ProcessingTime:  21 * time.Second,
	})

	text := out.String()
	require.Contains(t, text, "FAO 12345/2023")
	require.Contains(t, text, "judgments")
	require.Contains(t, text, "solved=true attempts=2")
	require.Contains(t, text, "21s")
	require.Contains(t, text, "Found in judgments")
	require.Contains(t, text, "https://court.example.gov.in/docs/j1.pdf")
}

func TestRenderFailedOutcome(t *testing.T) {
	var out bytes.Buffer
	renderOutcome(&out, renderQuery, court.SearchOutcome{
		SearchID:     "b5c2",
		Status:       court.StatusCaptchaFailed,
		ErrorMessage: "CAPTCHA not solved after 30 attempts",
	})

	text := out.String()
	require.Contains(t, text, "captcha_failed")
	require.Contains(t, text, "CAPTCHA not solved after 30 attempts")
	require.NotContains(t, text, "Orders")
	require.NotContains(t, text, "Case number")
}

func TestRenderHistory(t *testing.T) {
	var out bytes.Buffer
	renderHistory(&out, querylog.Page{
		Entries: []querylog.Summary{
			{
				ID:               7,
				SearchID:         "b5c1",
				Query:            renderQuery,
				Status:           court.StatusNotFound,
				ProcessingTimeMs: 1500,
				CreatedAt:        time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
			},
		},
		Page:  1,
		Limit: 10,
		Total: 1,
		Pages: 1,
	})

	text := out.String()
	require.Contains(t, text, "not_found")
	require.Contains(t, text, "1.5s")
	require.Contains(t, text, "page 1 of 1, 1 searches")
}

func TestWriteJson(t *testing.T) {
	var out bytes.Buffer
	err := writeJson(&out, court.SearchOutcome{
		SearchID:       "b5c1",
		Status:         court.StatusNotFound,
		Orders:         []court.OrderDocument{},
		ProcessingTime: 2 * time.Second,
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Equal(t, "not_found", decoded["status"])
	require.Equal(t, float64(2000), decoded["processingTimeMs"])
}

func TestExitCode(t *testing.T) {
	table := []struct {
		status   court.Status
		expected int
	}{
		{court.StatusSuccess, 0},
		{court.StatusNotFound, 2},
		{court.StatusCaptchaFailed, 3},
		{court.StatusError, 1},
	}
	for _, test := range table {
		require.Equal(t, test.expected, exitCode(test.status), string(test.status))
	}
}
