package court

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"courtcase-backend/internal/components/browser"
	"courtcase-backend/internal/components/browser/browsertest"
	"courtcase-backend/internal/components/captcha"
	"courtcase-backend/internal/components/chrono"
	"courtcase-backend/internal/components/telemetry"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const landingPage = `<html><body>
	<a href="/order-info">Order Information System</a>
	<a href="/judgments">Latest Judgments</a>
</body></html>`

const orderInfoPage = `<html><body>
	<a href="/order-info/party">Party Name</a>
	<a href="/order-info/case">Case Number</a>
</body></html>`

const partyFormPage = `<html><body><form>
	<input name="party_name">
	<input name="year">
	<img src="/captcha.php?r=1">
	<input name="captcha_code">
	<input type="submit" value="Search">
</form></body></html>`

const caseFormPage = `<html><body><form>
	<select name="case_type">
		<option>Select</option>
		<option>W.P.(C)</option>
		<option>FAO</option>
		<option>FAO(OS)</option>
	</select>
	<input name="case_number">
	<input name="case_year">
	<img src="/captcha.php?r=2">
	<input name="captcha_code">
	<button type="submit">Search</button>
</form></body></html>`

const noRecordsPage = `<html><body><p>No records found</p></body></html>`

const judgmentsPage = `<html><body><table>
	<tr><th>Case</th><th>Date</th><th>Petitioner</th><th>Respondent</th><th></th></tr>
	<tr><td>FAO 12345/2023</td><td>01-02-2024</td><td>A</td><td>B</td><td><a href="/docs/j1.pdf">Download</a></td></tr>
	<tr><td>LPA 77/2021</td><td>04-02-2024</td><td>E</td><td>F</td><td><a href="/docs/j4.pdf">Download</a></td></tr>
</table></body></html>`

const emptyJudgmentsPage = `<html><body><table>
	<tr><td>LPA 77/2021</td><td>04-02-2024</td><td>E</td><td>F</td><td><a href="/docs/j4.pdf">Download</a></td></tr>
</table></body></html>`

func orderInfoResult(caseNumber string) string {
	return fmt.Sprintf(`<html><body><table>
		<tr><td>Case Number</td><td>Petitioner</td><td>Listing Date</td></tr>
		<tr><td>%s</td><td>Ram Kumar</td><td>14-08-2024</td></tr>
	</table></body></html>`, caseNumber)
}

type site struct {
	session     *browsertest.Session
	partyResult string
	caseResult  string
	submits     []map[string]string
}

func newSite(judgments string) *site {
	s := &site{
		partyResult: noRecordsPage,
		caseResult:  noRecordsPage,
	}
	s.session = browsertest.NewSession(landingPage)
	s.session.Pages["/order-info"] = orderInfoPage
	s.session.Pages["/order-info/party"] = partyFormPage
	s.session.Pages["/order-info/case"] = caseFormPage
	s.session.Pages["/judgments"] = judgments
	s.session.OnSubmit = func(fields map[string]string) string {
		s.submits = append(s.submits, fields)
		if _, ok := fields["party_name"]; ok {
			return s.partyResult
		}
		return s.caseResult
	}
	return s
}

// solver solves every challenge after `pending` not ready polls.
type solver struct {
	submitErr error
	pending   int
	polls     int
	reported  []string
}

func (s *solver) Submit(ctx context.Context, image []byte) (string, error) {
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return fmt.Sprintf("job-%d", s.polls), nil
}

func (s *solver) Poll(ctx context.Context, jobId string) (string, error) {
	s.polls++
	if s.pending < 0 || s.polls <= s.pending {
		return "", captcha.ErrNotReady
	}
	return "abcd", nil
}

func (s *solver) ReportBad(ctx context.Context, jobId string) error {
	s.reported = append(s.reported, jobId)
	return nil
}

func setupEngine(t testing.TB, factory browser.SessionFactory, service captcha.Service) (Engine, *chrono.FakeImpl, *telemetry.RecorderAPI) {
	clock := chrono.NewFakeImpl(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	tel := telemetry.NewRecorderAPI()
	engine, err := NewEngine(DefaultOptions(testBaseUrl), factory, service, clock, tel)
	require.NoError(t, err)
	return engine, clock, tel
}

func TestSearchJudgmentsScenario(t *testing.T) {
	s := newSite(judgmentsPage)
	service := &solver{}
	engine, _, _ := setupEngine(t, s.session.Factory(), service)

	outcome, err := engine.Search(context.Background(), testQuery)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.Equal(t, StrategyJudgments, outcome.Strategy)
	require.Len(t, outcome.Orders, 1)
	require.Equal(t, testBaseUrl+"/docs/j1.pdf", outcome.Orders[0].Url)
	require.Equal(t, OrderTypeJudgment, outcome.Orders[0].Type)
	require.NotNil(t, outcome.CaseInfo)
	require.Equal(t, "12345", outcome.CaseInfo.CaseNumber)
	require.Empty(t, outcome.ErrorMessage)
	require.Contains(t, outcome.RawHtml, "j1.pdf")

	// both form strategies solved their challenge before falling through
	require.True(t, outcome.CaptchaSolved)
	require.Equal(t, 2, outcome.CaptchaAttempts)
	require.Len(t, s.submits, 2)
	require.Equal(t, "abcd", s.submits[0]["captcha_code"])

	_, err = uuid.Parse(outcome.SearchID)
	require.NoError(t, err)
	require.Equal(t, 1, s.session.Closes())
	// every strategy starts from the landing page
	require.Equal(t, 4, s.session.HomeVisits())
}

func TestSearchNoRecords(t *testing.T) {
	s := newSite(noRecordsPage)
	engine, _, _ := setupEngine(t, s.session.Factory(), &solver{})

	outcome, err := engine.Search(context.Background(), testQuery)
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, outcome.Status)
	require.NotNil(t, outcome.Orders)
	require.Empty(t, outcome.Orders)
	require.Nil(t, outcome.CaseInfo)
	require.Empty(t, outcome.Strategy)
	require.Contains(t, outcome.RawHtml, "No records found")
	require.Equal(t, 1, s.session.Closes())
}

func TestSearchPartyNameStrategy(t *testing.T) {
	s := newSite(judgmentsPage)
	s.partyResult = orderInfoResult("FAO 12345/2023")
	service := &solver{pending: 2}
	engine, clock, _ := setupEngine(t, s.session.Factory(), service)

	outcome, err := engine.Search(context.Background(), testQuery)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.Equal(t, StrategyPartyName, outcome.Strategy)
	require.Equal(t, &CaseRecord{
		CaseNumber:      "FAO 12345/2023",
		CaseType:        "FAO",
		Petitioner:      "Ram Kumar",
		NextHearingDate: "14-08-2024",
	}, outcome.CaseInfo)
	require.True(t, outcome.CaptchaSolved)
	require.Equal(t, 3, outcome.CaptchaAttempts)

	// the case number goes in as the party name
	require.Len(t, s.submits, 1)
	require.Equal(t, "12345", s.submits[0]["party_name"])
	require.Equal(t, "2023", s.submits[0]["year"])

	// three poll intervals and the submit settle
	require.Equal(t, 3*captcha.DefaultPollInterval+DefaultSubmitSettle, outcome.ProcessingTime)
	require.Len(t, clock.Sleeps(), 4)
}

func TestSearchCaseNumberStrategy(t *testing.T) {
	s := newSite(judgmentsPage)
	s.caseResult = orderInfoResult("FAO 12345/2023")
	engine, _, _ := setupEngine(t, s.session.Factory(), &solver{})

	outcome, err := engine.Search(context.Background(), testQuery)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.Equal(t, StrategyCaseNumber, outcome.Strategy)
	require.Equal(t, "FAO 12345/2023", outcome.CaseInfo.CaseNumber)

	require.Len(t, s.submits, 2)
	fields := s.submits[1]
	require.Equal(t, "FAO", fields["case_type"])
	require.Equal(t, "12345", fields["case_number"])
	require.Equal(t, "2023", fields["case_year"])
}

func TestSearchCaptchaSubmitFailure(t *testing.T) {
	s := newSite(emptyJudgmentsPage)
	service := &solver{submitErr: &captcha.ServiceError{Code: "ERROR_ZERO_BALANCE"}}
	engine, _, tel := setupEngine(t, s.session.Factory(), service)

	outcome, err := engine.Search(context.Background(), testQuery)
	require.NoError(t, err)
	require.Equal(t, StatusCaptchaFailed, outcome.Status)
	require.Equal(t, 0, outcome.CaptchaAttempts)
	require.False(t, outcome.CaptchaSolved)
	require.Contains(t, outcome.ErrorMessage, "CAPTCHA")
	require.Empty(t, outcome.Orders)
	require.Nil(t, outcome.CaseInfo)

	// no form was submitted without a solved challenge
	require.Empty(t, s.submits)
	require.Equal(t, 1, s.session.Closes())
	require.NotEmpty(t, tel.Warnings("captcha: resolver.submit"))
}

func TestSearchCaptchaNeverReady(t *testing.T) {
	s := newSite(emptyJudgmentsPage)
	// only the case number flow is reachable
	s.session.Pages["/order-info"] = `<html><body><a href="/order-info/case">Case Number</a></body></html>`
	service := &solver{pending: -1}
	engine, _, _ := setupEngine(t, s.session.Factory(), service)

	outcome, err := engine.Search(context.Background(), testQuery)
	require.NoError(t, err)
	require.NotEqual(t, StatusSuccess, outcome.Status)
	require.Equal(t, StatusCaptchaFailed, outcome.Status)
	require.Equal(t, captcha.DefaultMaxAttempts, outcome.CaptchaAttempts)
	require.Equal(t, captcha.DefaultMaxAttempts, service.polls)
	require.Equal(t, time.Duration(captcha.DefaultMaxAttempts)*captcha.DefaultPollInterval, outcome.ProcessingTime)
}

func TestSearchCaptchaRejected(t *testing.T) {
	s := newSite(emptyJudgmentsPage)
	s.partyResult = `<html><body><p>Invalid CAPTCHA code</p></body></html>`
	s.caseResult = `<html><body><p>Invalid CAPTCHA code</p></body></html>`
	service := &solver{}
	engine, _, _ := setupEngine(t, s.session.Factory(), service)

	outcome, err := engine.Search(context.Background(), testQuery)
	require.NoError(t, err)
	require.Equal(t, StatusCaptchaFailed, outcome.Status)
	require.True(t, outcome.CaptchaSolved)
	require.Len(t, service.reported, 2)
}

func TestSearchSessionFailures(t *testing.T) {
	table := []struct {
		name        string
		openErr     error
		expectError bool
	}{
		{
			name:        "launch failure",
			openErr:     &browser.LaunchError{Err: fmt.Errorf("chromium not found")},
			expectError: true,
		},
		{
			name: "navigation failure",
			openErr: &browser.NavigationError{
				Url: testBaseUrl,
				Err: context.DeadlineExceeded,
			},
		},
	}

	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			s := newSite(judgmentsPage)
			s.session.OpenErr = test.openErr
			engine, _, tel := setupEngine(t, s.session.Factory(), &solver{})

			outcome, err := engine.Search(context.Background(), testQuery)
			if test.expectError {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, StatusError, outcome.Status)
			require.NotEmpty(t, outcome.ErrorMessage)
			require.Equal(t, 1, s.session.Closes())
			require.NotEmpty(t, tel.Broken("court: engine.search"))
		})
	}
}

// unreachableSite opens fine but every later return to the landing page fails.
type unreachableSite struct {
	*browsertest.Session
}

func (s unreachableSite) Home(ctx context.Context) error {
	return &browser.NavigationError{Url: testBaseUrl, Err: context.DeadlineExceeded}
}

func TestSearchAllStrategiesFail(t *testing.T) {
	const maintenancePage = `<html><body><p>Site under maintenance</p></body></html>`

	table := []struct {
		name    string
		setup   func(s *site) browser.SessionFactory
		message string
	}{
		{
			name: "landing page unreachable after open",
			setup: func(s *site) browser.SessionFactory {
				return func(string) browser.Session { return unreachableSite{s.session} }
			},
			message: "navigate",
		},
		{
			name: "no result tables",
			setup: func(s *site) browser.SessionFactory {
				s.session.Pages["/judgments"] = maintenancePage
				s.partyResult = maintenancePage
				s.caseResult = maintenancePage
				return s.session.Factory()
			},
			message: "table",
		},
	}

	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			s := newSite(judgmentsPage)
			engine, _, tel := setupEngine(t, test.setup(s), &solver{})

			outcome, err := engine.Search(context.Background(), testQuery)
			require.NoError(t, err)
			require.Equal(t, StatusError, outcome.Status)
			require.Contains(t, outcome.ErrorMessage, StrategyPartyName)
			require.Contains(t, outcome.ErrorMessage, test.message)
			require.Empty(t, outcome.Orders)
			require.Nil(t, outcome.CaseInfo)
			require.Len(t, tel.Warnings("court: orchestrator.strategy"), 3)
			require.Equal(t, 1, s.session.Closes())
		})
	}
}

func TestSearchInvalidQuery(t *testing.T) {
	opened := 0
	factory := func(id string) browser.Session {
		opened++
		return browsertest.NewSession(landingPage)
	}
	engine, _, _ := setupEngine(t, factory, &solver{})

	table := []CaseQuery{
		{CaseType: "", CaseNumber: "1", FilingYear: 2020},
		{CaseType: "FAO", CaseNumber: "  ", FilingYear: 2020},
		{CaseType: "FAO", CaseNumber: "1", FilingYear: 1900},
		{CaseType: "FAO", CaseNumber: "1", FilingYear: 2099},
	}
	for _, query := range table {
		outcome, err := engine.Search(context.Background(), query)
		require.NoError(t, err)
		require.Equal(t, StatusError, outcome.Status)
		require.Contains(t, outcome.ErrorMessage, "invalid query")
	}
	require.Zero(t, opened)
}

func TestSearchCancelled(t *testing.T) {
	s := newSite(judgmentsPage)
	engine, _, _ := setupEngine(t, s.session.Factory(), &solver{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := engine.Search(ctx, testQuery)
	require.NoError(t, err)
	require.Equal(t, StatusError, outcome.Status)
	require.Equal(t, 1, s.session.Closes())
}

func TestClassify(t *testing.T) {
	table := []struct {
		err      error
		expected Status
	}{
		{nil, StatusSuccess},
		{&NotFoundError{Reason: "x"}, StatusNotFound},
		{&captcha.TimeoutError{JobId: "1", Attempts: 30}, StatusCaptchaFailed},
		{fmt.Errorf("strategy: %w", &captcha.SubmitError{Err: fmt.Errorf("down")}), StatusCaptchaFailed},
		{&browser.NavigationError{Url: testBaseUrl + "/CAPTCHA", Err: context.DeadlineExceeded}, StatusError},
		{&ExtractionError{Reason: "no table"}, StatusError},
		{context.DeadlineExceeded, StatusError},
	}
	for _, test := range table {
		require.Equal(t, test.expected, Classify(test.err), fmt.Sprint(test.err))
	}
}

func TestOutcomeJson(t *testing.T) {
	outcome := SearchOutcome{
		SearchID:       "id",
		Status:         StatusNotFound,
		Orders:         []OrderDocument{},
		ProcessingTime: 1500 * time.Millisecond,
	}
	raw, err := json.Marshal(outcome)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, float64(1500), decoded["processingTimeMs"])
	require.Equal(t, "not_found", decoded["status"])
	require.NotContains(t, decoded, "caseInfo")
	require.Equal(t, []any{}, decoded["orders"])
}
