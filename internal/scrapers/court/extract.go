package court

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"courtcase-backend/internal/components/assert"
	"courtcase-backend/internal/components/telemetry"
	"courtcase-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_extractor_order_information = "extractor.order-information"
	report_extractor_judgments         = "extractor.judgments"
	report_extractor_documents         = "extractor.documents"
)

// maxDocuments caps the documents taken from an order information page.
const maxDocuments = 10

const judgmentsStatus = "Found in judgments"

// NoRecords describes how the site says a search matched nothing.
type NoRecords struct {
	// Texts are matched case-insensitively against the visible page text.
	Texts []string `json:"texts"`
	// Selectors are css selectors of elements that only appear on empty
	// result pages.
	Selectors []string `json:"selectors"`
}

func DefaultNoRecords() NoRecords {
	return NoRecords{
		Texts:     []string{"No records found", "No record found"},
		Selectors: []string{".no-results", ".error-message"},
	}
}

// Extraction is what one strategy read off the result page.
type Extraction struct {
	CaseInfo CaseRecord
	Orders   []OrderDocument
}

// Extractor turns rendered result pages into canonical records. Tables are
// read by fixed column index, a layout change on the site breaks parsing
// rather than being detected.
type Extractor struct {
	baseUrl   *url.URL
	noRecords NoRecords
	tel       telemetry.API
}

func NewExtractor(baseUrl string, noRecords NoRecords, tel telemetry.API) (Extractor, error) {
	assert.NotNil(tel)

	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return Extractor{}, fmt.Errorf("parse base url: %w", err)
	}
	if !parsed.IsAbs() {
		return Extractor{}, fmt.Errorf("base url %q is not absolute", baseUrl)
	}
	return Extractor{
		baseUrl:   parsed,
		noRecords: noRecords,
		tel:       tel,
	}, nil
}

func (e Extractor) parse(markup string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &ExtractionError{Reason: fmt.Sprintf("parse markup: %s", err.Error())}
	}
	return doc, nil
}

// checkNoRecords returns a NotFoundError when the page carries an explicit
// no records marker.
func (e Extractor) checkNoRecords(doc *goquery.Document) error {
	for _, selector := range e.noRecords.Selectors {
		if doc.Find(selector).Length() > 0 {
			return &NotFoundError{Reason: fmt.Sprintf("page has %s", selector)}
		}
	}
	text := strings.ToLower(htmlutil.SelectionText(doc.Find("body")))
	if text == "" {
		text = strings.ToLower(htmlutil.SelectionText(doc.Selection))
	}
	for _, marker := range e.noRecords.Texts {
		if marker != "" && strings.Contains(text, strings.ToLower(marker)) {
			return &NotFoundError{Reason: fmt.Sprintf("page says %q", marker)}
		}
	}
	return nil
}

func (e Extractor) resolve(href string) string {
	resolved, err := htmlutil.ResolveHref(e.baseUrl, href)
	if err != nil {
		e.tel.ReportWarning(report_extractor_documents, fmt.Errorf("resolve href: %w", err), href)
	}
	return resolved
}

func cellText(cells *goquery.Selection, idx int) string {
	return htmlutil.SelectionText(cells.Eq(idx))
}

// OrderInformation reads an order information result page. Rows of at least
// three cells are read as (case number, petitioner, next hearing date), the
// last such row wins.
func (e Extractor) OrderInformation(markup string, query CaseQuery) (Extraction, error) {
	doc, err := e.parse(markup)
	if err != nil {
		e.tel.ReportBroken(report_extractor_order_information, err)
		return Extraction{}, err
	}
	err = e.checkNoRecords(doc)
	if err != nil {
		return Extraction{}, err
	}

	rows := doc.Find("table tr")
	if rows.Length() == 0 {
		return Extraction{}, &ExtractionError{Reason: "no result table on page"}
	}

	var out Extraction
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		caseNumber := cellText(cells, 0)
		if caseNumber == "" || caseNumber == "Case Number" {
			return
		}
		out.CaseInfo.CaseNumber = caseNumber
		out.CaseInfo.Petitioner = cellText(cells, 1)
		out.CaseInfo.NextHearingDate = cellText(cells, 2)
	})

	if out.CaseInfo.CaseNumber != "" {
		out.CaseInfo.CaseType = query.CaseType
	}
	out.Orders = e.documents(doc, out.CaseInfo)
	return out, nil
}

var documentDateLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"2006-01-02",
	"02.01.2006",
	"2 January 2006",
	"02 Jan 2006",
}

func parseDocumentDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	for _, layout := range documentDateLayouts {
		t, err := time.Parse(layout, text)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// documentHref reports whether an href looks like an order or judgment.
func documentHref(href string) bool {
	href = strings.ToLower(href)
	return strings.Contains(href, ".pdf") ||
		strings.Contains(href, "order") ||
		strings.Contains(href, "judgment")
}

// documents collects links to orders and judgments from the rows of result
// tables, newest first, undated last. Anchors outside a table row, or inside
// the site's nav, header or footer, are never documents of the case.
func (e Extractor) documents(doc *goquery.Document, info CaseRecord) []OrderDocument {
	type dated struct {
		doc   OrderDocument
		date  time.Time
		valid bool
	}

	var found []dated
	doc.Find("table tr a").Not("nav a, header a, footer a").Each(func(_ int, a *goquery.Selection) {
		for _, anchor := range htmlutil.GetAnchors(a) {
			if anchor.Name == "" || !documentHref(anchor.Href) {
				continue
			}
			date := htmlutil.SelectionText(a.Closest("tr").Find("td").Last())
			parsed, ok := parseDocumentDate(date)
			found = append(found, dated{
				doc: OrderDocument{
					Title:      anchor.Name,
					Url:        e.resolve(anchor.Href),
					Date:       date,
					Type:       determineOrderType(anchor.Name),
					CaseNumber: info.CaseNumber,
					Petitioner: info.Petitioner,
					Respondent: info.Respondent,
				},
				date:  parsed,
				valid: ok,
			})
		}
	})

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].valid != found[j].valid {
			return found[i].valid
		}
		return found[i].date.After(found[j].date)
	})
	if len(found) > maxDocuments {
		found = found[:maxDocuments]
	}

	orders := make([]OrderDocument, len(found))
	for i, f := range found {
		orders[i] = f.doc
	}
	return orders
}

func documentLink(row *goquery.Selection) string {
	link := row.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		if strings.Contains(href, ".pdf") {
			return true
		}
		return strings.Contains(htmlutil.SelectionText(a), "Download")
	}).First()
	return strings.TrimSpace(link.AttrOr("href", ""))
}

// Judgments scans a judgments listing. Rows of at least four cells are read
// as (case number, date, petitioner, respondent) and kept when any of the
// three text cells contains the queried case number and the row links to a
// document.
func (e Extractor) Judgments(markup string, query CaseQuery) (Extraction, error) {
	doc, err := e.parse(markup)
	if err != nil {
		e.tel.ReportBroken(report_extractor_judgments, err)
		return Extraction{}, err
	}
	err = e.checkNoRecords(doc)
	if err != nil {
		return Extraction{}, err
	}

	rows := doc.Find("table tr")
	if rows.Length() == 0 {
		return Extraction{}, &ExtractionError{Reason: "no judgments table on page"}
	}

	needle := strings.ToLower(query.CaseNumber)
	orders := []OrderDocument{}
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}
		caseNumber := cellText(cells, 0)
		date := cellText(cells, 1)
		petitioner := cellText(cells, 2)
		respondent := cellText(cells, 3)

		if !strings.Contains(strings.ToLower(caseNumber), needle) &&
			!strings.Contains(strings.ToLower(petitioner), needle) &&
			!strings.Contains(strings.ToLower(respondent), needle) {
			return
		}

		href := documentLink(row)
		if href == "" {
			e.tel.ReportDebug("judgment row without document link", caseNumber)
			return
		}
		orders = append(orders, OrderDocument{
			Title:      fmt.Sprintf("Judgment for %s", caseNumber),
			Url:        e.resolve(href),
			Date:       date,
			Type:       OrderTypeJudgment,
			CaseNumber: caseNumber,
			Petitioner: petitioner,
			Respondent: respondent,
		})
	})

	return Extraction{
		CaseInfo: CaseRecord{
			CaseNumber: query.CaseNumber,
			CaseType:   query.CaseType,
			Status:     judgmentsStatus,
		},
		Orders: orders,
	}, nil
}
