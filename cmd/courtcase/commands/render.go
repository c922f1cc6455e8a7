package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"courtcase-backend/internal/querylog"
	"courtcase-backend/internal/scrapers/court"

	"github.com/jedib0t/go-pretty/v6/table"
)

func writeJson(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func renderCase(w io.Writer, info *court.CaseRecord) {
	if info == nil {
		return
	}
	t := newTable(w)
	t.SetTitle("Case")
	t.AppendRows([]table.Row{
		{"Case number", info.CaseNumber},
		{"Case type", info.CaseType},
		{"Petitioner", info.Petitioner},
		{"Respondent", info.Respondent},
		{"Filing date", info.FilingDate},
		{"Next hearing", info.NextHearingDate},
		{"Status", info.Status},
	})
	t.Render()
}

func renderOrders(w io.Writer, orders []court.OrderDocument) {
	if len(orders) == 0 {
		return
	}
	t := newTable(w)
	t.SetTitle("Orders")
	t.AppendHeader(table.Row{"#", "Date", "Type", "Title", "Url"})
	for i, order := range orders {
		t.AppendRow(table.Row{i + 1, order.Date, order.Type, order.Title, order.Url})
	}
	t.Render()
}

func renderOutcome(w io.Writer, query court.CaseQuery, outcome court.SearchOutcome) {
	t := newTable(w)
	t.SetTitle("Search")
	t.AppendRows([]table.Row{
		{"Search id", outcome.SearchID},
		{"Query", fmt.Sprintf("%s %s/%d", query.CaseType, query.CaseNumber, query.FilingYear)},
		{"Status", outcome.Status},
		{"Strategy", outcome.Strategy},
		{"CAPTCHA", fmt.Sprintf("solved=%t attempts=%d", outcome.CaptchaSolved, outcome.CaptchaAttempts)},
		{"Time", outcome.ProcessingTime.Round(time.Millisecond).String()},
	})
	if outcome.ErrorMessage != "" {
		t.AppendRow(table.Row{"Error", outcome.ErrorMessage})
	}
	t.Render()

	renderCase(w, outcome.CaseInfo)
	renderOrders(w, outcome.Orders)
}

func renderHistory(w io.Writer, page querylog.Page) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Id", "Created", "Type", "Number", "Year", "Status", "CAPTCHA", "Time"})
	for _, entry := range page.Entries {
		t.AppendRow(table.Row{
			entry.ID,
			entry.CreatedAt.Local().Format(time.DateTime),
			entry.Query.CaseType,
			entry.Query.CaseNumber,
			entry.Query.FilingYear,
			entry.Status,
			entry.CaptchaAttempts,
			(time.Duration(entry.ProcessingTimeMs) * time.Millisecond).String(),
		})
	}
	t.SetCaption("page %d of %d, %d searches", page.Page, page.Pages, page.Total)
	t.Render()
}

func renderEntry(w io.Writer, entry querylog.Entry) {
	renderOutcome(w, entry.Query, court.SearchOutcome{
		SearchID:        entry.SearchID,
		Status:          entry.Status,
		Strategy:        entry.Strategy,
		CaseInfo:        entry.CaseInfo,
		Orders:          entry.Orders,
		ErrorMessage:    entry.ErrorMessage,
		CaptchaSolved:   entry.CaptchaSolved,
		CaptchaAttempts: entry.CaptchaAttempts,
		ProcessingTime:  time.Duration(entry.ProcessingTimeMs) * time.Millisecond,
	})
}

// exitCode maps a status to the process exit code, only success is 0.
func exitCode(status court.Status) int {
	switch status {
	case court.StatusSuccess:
		return 0
	case court.StatusNotFound:
		return 2
	case court.StatusCaptchaFailed:
		return 3
	default:
		return 1
	}
}
