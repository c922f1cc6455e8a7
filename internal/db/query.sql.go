// source: query.sql

package db

import (
	"context"
	"database/sql"
)

const createQueryLog = `-- name: CreateQueryLog :one
insert into query_logs (
    search_id, case_type, case_number, filing_year, status, strategy,
    raw_html, error_message, processing_time_ms, captcha_solved,
    captcha_attempts, extracted_data, created_at
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
returning id
`

type CreateQueryLogParams struct {
	SearchID         string
	CaseType         string
	CaseNumber       string
	FilingYear       int64
	Status           string
	Strategy         string
	RawHtml          string
	ErrorMessage     sql.NullString
	ProcessingTimeMs int64
	CaptchaSolved    bool
	CaptchaAttempts  int64
	ExtractedData    sql.NullString
	CreatedAt        int64
}

func (q *Queries) CreateQueryLog(ctx context.Context, arg CreateQueryLogParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createQueryLog,
		arg.SearchID,
		arg.CaseType,
		arg.CaseNumber,
		arg.FilingYear,
		arg.Status,
		arg.Strategy,
		arg.RawHtml,
		arg.ErrorMessage,
		arg.ProcessingTimeMs,
		arg.CaptchaSolved,
		arg.CaptchaAttempts,
		arg.ExtractedData,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const createOrderDocument = `-- name: CreateOrderDocument :exec
insert into order_documents (
    query_log_id, position, title, url, date, type,
    case_number, petitioner, respondent
) values (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateOrderDocumentParams struct {
	QueryLogID int64
	Position   int64
	Title      string
	Url        string
	Date       string
	Type       string
	CaseNumber string
	Petitioner string
	Respondent string
}

func (q *Queries) CreateOrderDocument(ctx context.Context, arg CreateOrderDocumentParams) error {
	_, err := q.db.ExecContext(ctx, createOrderDocument,
		arg.QueryLogID,
		arg.Position,
		arg.Title,
		arg.Url,
		arg.Date,
		arg.Type,
		arg.CaseNumber,
		arg.Petitioner,
		arg.Respondent,
	)
	return err
}

const getQueryLog = `-- name: GetQueryLog :one
select id, search_id, case_type, case_number, filing_year, status, strategy, raw_html, error_message, processing_time_ms, captcha_solved, captcha_attempts, extracted_data, created_at from query_logs where id = ?
`

func scanQueryLog(row *sql.Row) (QueryLog, error) {
	var i QueryLog
	err := row.Scan(
		&i.ID,
		&i.SearchID,
		&i.CaseType,
		&i.CaseNumber,
		&i.FilingYear,
		&i.Status,
		&i.Strategy,
		&i.RawHtml,
		&i.ErrorMessage,
		&i.ProcessingTimeMs,
		&i.CaptchaSolved,
		&i.CaptchaAttempts,
		&i.ExtractedData,
		&i.CreatedAt,
	)
	return i, err
}

func (q *Queries) GetQueryLog(ctx context.Context, id int64) (QueryLog, error) {
	row := q.db.QueryRowContext(ctx, getQueryLog, id)
	return scanQueryLog(row)
}

const getQueryLogBySearchId = `-- name: GetQueryLogBySearchId :one
select id, search_id, case_type, case_number, filing_year, status, strategy, raw_html, error_message, processing_time_ms, captcha_solved, captcha_attempts, extracted_data, created_at from query_logs where search_id = ?
`

func (q *Queries) GetQueryLogBySearchId(ctx context.Context, searchID string) (QueryLog, error) {
	row := q.db.QueryRowContext(ctx, getQueryLogBySearchId, searchID)
	return scanQueryLog(row)
}

const listQueryLogs = `-- name: ListQueryLogs :many
select id, search_id, case_type, case_number, filing_year, status,
    processing_time_ms, captcha_solved, captcha_attempts, created_at
from query_logs
order by created_at desc, id desc
limit ? offset ?
`

type ListQueryLogsParams struct {
	Limit  int64
	Offset int64
}

type ListQueryLogsRow struct {
	ID               int64
	SearchID         string
	CaseType         string
	CaseNumber       string
	FilingYear       int64
	Status           string
	ProcessingTimeMs int64
	CaptchaSolved    bool
	CaptchaAttempts  int64
	CreatedAt        int64
}

func (q *Queries) ListQueryLogs(ctx context.Context, arg ListQueryLogsParams) ([]ListQueryLogsRow, error) {
	rows, err := q.db.QueryContext(ctx, listQueryLogs, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListQueryLogsRow
	for rows.Next() {
		var i ListQueryLogsRow
		if err := rows.Scan(
			&i.ID,
			&i.SearchID,
			&i.CaseType,
			&i.CaseNumber,
			&i.FilingYear,
			&i.Status,
			&i.ProcessingTimeMs,
			&i.CaptchaSolved,
			&i.CaptchaAttempts,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countQueryLogs = `-- name: CountQueryLogs :one
select count(*) from query_logs
`

func (q *Queries) CountQueryLogs(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countQueryLogs)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listOrderDocuments = `-- name: ListOrderDocuments :many
select id, query_log_id, position, title, url, date, type, case_number, petitioner, respondent from order_documents
where query_log_id = ?
order by position asc
`

func (q *Queries) ListOrderDocuments(ctx context.Context, queryLogID int64) ([]OrderDocument, error) {
	rows, err := q.db.QueryContext(ctx, listOrderDocuments, queryLogID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderDocument
	for rows.Next() {
		var i OrderDocument
		if err := rows.Scan(
			&i.ID,
			&i.QueryLogID,
			&i.Position,
			&i.Title,
			&i.Url,
			&i.Date,
			&i.Type,
			&i.CaseNumber,
			&i.Petitioner,
			&i.Respondent,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteOrderDocumentsBefore = `-- name: DeleteOrderDocumentsBefore :execrows
delete from order_documents
where query_log_id in (select id from query_logs where created_at < ?)
`

func (q *Queries) DeleteOrderDocumentsBefore(ctx context.Context, createdAt int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteOrderDocumentsBefore, createdAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteQueryLogsBefore = `-- name: DeleteQueryLogsBefore :execrows
delete from query_logs where created_at < ?
`

func (q *Queries) DeleteQueryLogsBefore(ctx context.Context, createdAt int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteQueryLogsBefore, createdAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
