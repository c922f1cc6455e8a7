// Package querylog keeps a history of every search and what it returned.
package querylog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"courtcase-backend/internal/components/assert"
	"courtcase-backend/internal/components/chrono"
	"courtcase-backend/internal/components/telemetry"
	"courtcase-backend/internal/db"
	"courtcase-backend/internal/scrapers/court"
)

const (
	report_db_query = "db.query"
	report_record   = "store.record"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var ErrNotFound = errors.New("query log entry not found")

type Store struct {
	qry    *db.Queries
	makeTx db.MakeTx
	time   chrono.API
	tel    telemetry.API
}

func NewStore(database *sql.DB, time chrono.API, tel telemetry.API) Store {
	assert.NotNil(database)
	assert.NotNil(time)
	assert.NotNil(tel)

	return Store{
		qry:    db.New(database),
		makeTx: db.NewMakeTx(database),
		time:   time,
		tel:    telemetry.NewScopedAPI("querylog", tel),
	}
}

type extractedData struct {
	CaseInfo *court.CaseRecord     `json:"caseInfo"`
	Orders   []court.OrderDocument `json:"orders"`
}

// Record stores one finished search and its documents in a single
// transaction and returns the id of the new entry.
func (s Store) Record(ctx context.Context, query court.CaseQuery, outcome court.SearchOutcome) (int64, error) {
	var extracted sql.NullString
	if outcome.Status == court.StatusSuccess {
		raw, err := json.Marshal(extractedData{
			CaseInfo: outcome.CaseInfo,
			Orders:   outcome.Orders,
		})
		if err != nil {
			s.tel.ReportBroken(report_record, fmt.Errorf("marshal extracted data: %w", err))
			return 0, err
		}
		extracted = sql.NullString{String: string(raw), Valid: true}
	}

	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return 0, err
	}
	defer discard()

	id, err := tx.CreateQueryLog(ctx, db.CreateQueryLogParams{
		SearchID:         outcome.SearchID,
		CaseType:         query.CaseType,
		CaseNumber:       query.CaseNumber,
		FilingYear:       int64(query.FilingYear),
		Status:           string(outcome.Status),
		Strategy:         outcome.Strategy,
		RawHtml:          outcome.RawHtml,
		ErrorMessage:     sql.NullString{String: outcome.ErrorMessage, Valid: outcome.ErrorMessage != ""},
		ProcessingTimeMs: outcome.ProcessingTime.Milliseconds(),
		CaptchaSolved:    outcome.CaptchaSolved,
		CaptchaAttempts:  int64(outcome.CaptchaAttempts),
		ExtractedData:    extracted,
		CreatedAt:        s.time.Now().Unix(),
	})
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CreateQueryLog", outcome.SearchID)
		return 0, err
	}

	for i, order := range outcome.Orders {
		err = tx.CreateOrderDocument(ctx, db.CreateOrderDocumentParams{
			QueryLogID: id,
			Position:   int64(i),
			Title:      order.Title,
			Url:        order.Url,
			Date:       order.Date,
			Type:       string(order.Type),
			CaseNumber: order.CaseNumber,
			Petitioner: order.Petitioner,
			Respondent: order.Respondent,
		})
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "CreateOrderDocument", outcome.SearchID)
			return 0, err
		}
	}

	err = commit()
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("commit: %w", err))
		return 0, err
	}
	return id, nil
}

type Summary struct {
	ID               int64           `json:"id"`
	SearchID         string          `json:"searchId"`
	Query            court.CaseQuery `json:"query"`
	Status           court.Status    `json:"status"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
	CaptchaSolved    bool            `json:"captchaSolved"`
	CaptchaAttempts  int             `json:"captchaAttempts"`
	CreatedAt        time.Time       `json:"createdAt"`
}

type Page struct {
	Entries []Summary `json:"entries"`
	Page    int       `json:"page"`
	Limit   int       `json:"limit"`
	Total   int64     `json:"total"`
	Pages   int       `json:"pages"`
}

// History lists entries newest first. Pages start at 1.
func (s Store) History(ctx context.Context, page, limit int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	total, err := s.qry.CountQueryLogs(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CountQueryLogs")
		return Page{}, err
	}
	rows, err := s.qry.ListQueryLogs(ctx, db.ListQueryLogsParams{
		Limit:  int64(limit),
		Offset: int64((page - 1) * limit),
	})
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "ListQueryLogs")
		return Page{}, err
	}

	entries := make([]Summary, len(rows))
	for i, row := range rows {
		entries[i] = Summary{
			ID:       row.ID,
			SearchID: row.SearchID,
			Query: court.CaseQuery{
				CaseType:   row.CaseType,
				CaseNumber: row.CaseNumber,
				FilingYear: int(row.FilingYear),
			},
			Status:           court.Status(row.Status),
			ProcessingTimeMs: row.ProcessingTimeMs,
			CaptchaSolved:    row.CaptchaSolved,
			CaptchaAttempts:  int(row.CaptchaAttempts),
			CreatedAt:        time.Unix(row.CreatedAt, 0),
		}
	}

	return Page{
		Entries: entries,
		Page:    page,
		Limit:   limit,
		Total:   total,
		Pages:   int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// Entry is a stored search with everything it returned.
type Entry struct {
	Summary
	Strategy     string                `json:"strategy,omitempty"`
	RawHtml      string                `json:"rawHtml"`
	ErrorMessage string                `json:"errorMessage,omitempty"`
	CaseInfo     *court.CaseRecord     `json:"caseInfo,omitempty"`
	Orders       []court.OrderDocument `json:"orders"`
}

func (s Store) Get(ctx context.Context, id int64) (Entry, error) {
	row, err := s.qry.GetQueryLog(ctx, id)
	return s.entry(ctx, row, err)
}

func (s Store) GetBySearchId(ctx context.Context, searchId string) (Entry, error) {
	row, err := s.qry.GetQueryLogBySearchId(ctx, searchId)
	return s.entry(ctx, row, err)
}

func (s Store) entry(ctx context.Context, row db.QueryLog, err error) (Entry, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetQueryLog")
		return Entry{}, err
	}

	entry := Entry{
		Summary: Summary{
			ID:       row.ID,
			SearchID: row.SearchID,
			Query: court.CaseQuery{
				CaseType:   row.CaseType,
				CaseNumber: row.CaseNumber,
				FilingYear: int(row.FilingYear),
			},
			Status:           court.Status(row.Status),
			ProcessingTimeMs: row.ProcessingTimeMs,
			CaptchaSolved:    row.CaptchaSolved,
			CaptchaAttempts:  int(row.CaptchaAttempts),
			CreatedAt:        time.Unix(row.CreatedAt, 0),
		},
		Strategy:     row.Strategy,
		RawHtml:      row.RawHtml,
		ErrorMessage: row.ErrorMessage.String,
		Orders:       []court.OrderDocument{},
	}

	if row.ExtractedData.Valid {
		var extracted extractedData
		err = json.Unmarshal([]byte(row.ExtractedData.String), &extracted)
		if err != nil {
			s.tel.ReportBroken(report_db_query, fmt.Errorf("unmarshal extracted data: %w", err), row.ID)
		} else {
			entry.CaseInfo = extracted.CaseInfo
		}
	}

	docs, err := s.qry.ListOrderDocuments(ctx, row.ID)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "ListOrderDocuments", row.ID)
		return Entry{}, err
	}
	for _, d := range docs {
		entry.Orders = append(entry.Orders, court.OrderDocument{
			Title:      d.Title,
			Url:        d.Url,
			Date:       d.Date,
			Type:       court.OrderType(d.Type),
			CaseNumber: d.CaseNumber,
			Petitioner: d.Petitioner,
			Respondent: d.Respondent,
		})
	}
	return entry, nil
}

// Prune deletes every entry recorded before the given time.
func (s Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return 0, err
	}
	defer discard()

	_, err = tx.DeleteOrderDocumentsBefore(ctx, before.Unix())
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "DeleteOrderDocumentsBefore")
		return 0, err
	}
	deleted, err := tx.DeleteQueryLogsBefore(ctx, before.Unix())
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "DeleteQueryLogsBefore")
		return 0, err
	}
	err = commit()
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("commit: %w", err))
		return 0, err
	}
	return deleted, nil
}
