package court

import (
	"encoding/json"
	"strings"
	"time"
)

// MinFilingYear is the earliest filing year a query may ask for.
const MinFilingYear = 1950

// CaseQuery is the immutable input of one search.
type CaseQuery struct {
	CaseType   string `json:"caseType"`
	CaseNumber string `json:"caseNumber"`
	FilingYear int    `json:"filingYear"`
}

// Normalize trims the text fields.
func (q CaseQuery) Normalize() CaseQuery {
	q.CaseType = strings.TrimSpace(q.CaseType)
	q.CaseNumber = strings.TrimSpace(q.CaseNumber)
	return q
}

func (q CaseQuery) Validate(now time.Time) error {
	if strings.TrimSpace(q.CaseType) == "" {
		return &InvalidQueryError{Field: "caseType", Reason: "must not be empty"}
	}
	if strings.TrimSpace(q.CaseNumber) == "" {
		return &InvalidQueryError{Field: "caseNumber", Reason: "must not be empty"}
	}
	if q.FilingYear < MinFilingYear || q.FilingYear > now.Year() {
		return &InvalidQueryError{
			Field:  "filingYear",
			Reason: "must be between 1950 and the current year",
		}
	}
	return nil
}

// CaseRecord is the best known state of a matched case. Fields the source
// page does not show are left empty.
type CaseRecord struct {
	CaseNumber      string `json:"caseNumber"`
	CaseType        string `json:"caseType"`
	Petitioner      string `json:"petitioner"`
	Respondent      string `json:"respondent"`
	FilingDate      string `json:"filingDate"`
	NextHearingDate string `json:"nextHearingDate"`
	Status          string `json:"status"`
}

type OrderType string

const (
	OrderTypeJudgment OrderType = "judgment"
	OrderTypeOrder    OrderType = "order"
	OrderTypeInterim  OrderType = "interim_order"
	OrderTypeFinal    OrderType = "final_order"
	OrderTypeDocument OrderType = "document"
)

// determineOrderType classifies a document from its title, the first keyword
// that appears wins.
func determineOrderType(title string) OrderType {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "judgment"):
		return OrderTypeJudgment
	case strings.Contains(lower, "order"):
		return OrderTypeOrder
	case strings.Contains(lower, "interim"):
		return OrderTypeInterim
	case strings.Contains(lower, "final"):
		return OrderTypeFinal
	default:
		return OrderTypeDocument
	}
}

// OrderDocument is one downloadable artifact tied to a case, Url is always
// absolute.
type OrderDocument struct {
	Title      string    `json:"title"`
	Url        string    `json:"url"`
	Date       string    `json:"date"`
	Type       OrderType `json:"type"`
	CaseNumber string    `json:"caseNumber"`
	Petitioner string    `json:"petitioner"`
	Respondent string    `json:"respondent"`
}

type Status string

const (
	StatusSuccess       Status = "success"
	StatusNotFound      Status = "not_found"
	StatusCaptchaFailed Status = "captcha_failed"
	StatusError         Status = "error"
)

// SearchOutcome is the single value returned for every search.
type SearchOutcome struct {
	SearchID string `json:"searchId"`
	Status   Status `json:"status"`
	// Strategy names the strategy that produced the data, empty unless the
	// status is success.
	Strategy        string          `json:"strategy,omitempty"`
	CaseInfo        *CaseRecord     `json:"caseInfo,omitempty"`
	Orders          []OrderDocument `json:"orders"`
	RawHtml         string          `json:"rawHtml"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
	CaptchaSolved   bool            `json:"captchaSolved"`
	CaptchaAttempts int             `json:"captchaAttempts"`
	ProcessingTime  time.Duration   `json:"-"`
}

func (o SearchOutcome) MarshalJSON() ([]byte, error) {
	type plain SearchOutcome
	return json.Marshal(struct {
		plain
		ProcessingTimeMs int64 `json:"processingTimeMs"`
	}{
		plain:            plain(o),
		ProcessingTimeMs: o.ProcessingTime.Milliseconds(),
	})
}
