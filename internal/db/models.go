package db

import (
	"database/sql"
)

type OrderDocument struct {
	ID         int64
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

type QueryLog struct {
	ID               int64
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
