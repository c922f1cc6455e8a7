package court

import (
	"context"
	"fmt"
	"strconv"

	"courtcase-backend/internal/components/browser"
	"courtcase-backend/internal/components/captcha"
	"courtcase-backend/internal/components/telemetry"
)

const (
	report_strategy_party_name  = "strategy.party-name"
	report_strategy_case_number = "strategy.case-number"
	report_strategy_judgments   = "strategy.judgments"
)

const (
	StrategyPartyName  = "party-name"
	StrategyCaseNumber = "case-number"
	StrategyJudgments  = "judgments"
)

// searchRun is everything one search owns. Strategies share it but never
// read what a previous strategy left behind, they start from the landing
// page every time.
type searchRun struct {
	id      string
	query   CaseQuery
	session browser.Session

	captchaAttempts int
	captchaSolved   bool
}

func (r *searchRun) recordCaptcha(out captcha.Outcome) {
	r.captchaAttempts += out.Attempts
	if out.Solved {
		r.captchaSolved = true
	}
}

type strategy interface {
	Name() string
	Search(ctx context.Context, run *searchRun) (Extraction, error)
	// Usable reports whether the extraction is good enough to end the search.
	Usable(result Extraction) bool
}

// forms holds the steps the strategies are built from.
type forms struct {
	selectors Selectors
	resolver  captcha.Resolver
	extractor Extractor
	// settle waits for the result page after a submit.
	settle func(ctx context.Context) error
	tel    telemetry.API
}

// click follows a link or control, an absent element is not an error.
func (f forms) click(ctx context.Context, run *searchRun, loc browser.Locator, what string) error {
	clicked, err := run.session.FindAndClick(ctx, loc)
	if err != nil {
		return fmt.Errorf("click %s: %w", what, err)
	}
	if !clicked {
		f.tel.ReportDebug("no element to click", what, run.id)
	}
	return nil
}

func (f forms) fill(ctx context.Context, run *searchRun, loc browser.Locator, value, what string) error {
	filled, err := run.session.FillField(ctx, loc, value)
	if err != nil {
		return fmt.Errorf("fill %s: %w", what, err)
	}
	if !filled {
		f.tel.ReportDebug("no field to fill", what, run.id)
	}
	return nil
}

func (f forms) fillYear(ctx context.Context, run *searchRun) error {
	if run.query.FilingYear == 0 {
		return nil
	}
	return f.fill(ctx, run, f.selectors.YearInput, strconv.Itoa(run.query.FilingYear), "year")
}

// submit solves the CAPTCHA on the form if there is one, submits it and
// returns the markup of the result page.
func (f forms) submit(ctx context.Context, run *searchRun) (string, error) {
	out, err := f.resolver.Resolve(ctx, run.session)
	run.recordCaptcha(out)
	if err != nil {
		return "", err
	}

	clicked, err := run.session.FindAndClick(ctx, f.selectors.SubmitButton)
	if err != nil {
		return "", fmt.Errorf("click submit: %w", err)
	}
	if clicked {
		err = f.settle(ctx)
		if err != nil {
			return "", err
		}
	} else {
		f.tel.ReportDebug("no submit control", run.id)
	}

	err = f.resolver.Verify(ctx, run.session, out)
	if err != nil {
		return "", err
	}
	return run.session.CurrentMarkup(ctx)
}

// partyNameStrategy searches the order information system by party name.
// The case number is typed in as the party name, which is how the site has
// always been queried here even though it is not a party name.
type partyNameStrategy struct {
	forms
}

func (partyNameStrategy) Name() string { return StrategyPartyName }

func (s partyNameStrategy) Search(ctx context.Context, run *searchRun) (Extraction, error) {
	err := run.session.Home(ctx)
	if err != nil {
		s.tel.ReportWarning(report_strategy_party_name, err, run.id)
		return Extraction{}, err
	}
	err = s.click(ctx, run, s.selectors.OrderInfoLink, "order information")
	if err != nil {
		return Extraction{}, err
	}
	err = s.click(ctx, run, s.selectors.PartyNameLink, "party name search")
	if err != nil {
		return Extraction{}, err
	}
	err = s.fill(ctx, run, s.selectors.PartyNameInput, run.query.CaseNumber, "party name")
	if err != nil {
		return Extraction{}, err
	}
	err = s.fillYear(ctx, run)
	if err != nil {
		return Extraction{}, err
	}

	markup, err := s.submit(ctx, run)
	if err != nil {
		s.tel.ReportWarning(report_strategy_party_name, err, run.id)
		return Extraction{}, err
	}
	return s.extractor.OrderInformation(markup, run.query)
}

func (partyNameStrategy) Usable(result Extraction) bool {
	return result.CaseInfo.CaseNumber != ""
}

// caseNumberStrategy searches the order information system by case type,
// number and year.
type caseNumberStrategy struct {
	forms
}

func (caseNumberStrategy) Name() string { return StrategyCaseNumber }

func (s caseNumberStrategy) Search(ctx context.Context, run *searchRun) (Extraction, error) {
	err := run.session.Home(ctx)
	if err != nil {
		s.tel.ReportWarning(report_strategy_case_number, err, run.id)
		return Extraction{}, err
	}
	err = s.click(ctx, run, s.selectors.OrderInfoLink, "order information")
	if err != nil {
		return Extraction{}, err
	}
	err = s.click(ctx, run, s.selectors.CaseNumberLink, "case number search")
	if err != nil {
		return Extraction{}, err
	}

	selected, err := run.session.SelectOption(ctx, s.selectors.CaseTypeSelect, run.query.CaseType)
	if err != nil {
		return Extraction{}, fmt.Errorf("select case type: %w", err)
	}
	if !selected {
		s.tel.ReportDebug("case type not selected", run.query.CaseType, run.id)
	}
	err = s.fill(ctx, run, s.selectors.CaseNumberInput, run.query.CaseNumber, "case number")
	if err != nil {
		return Extraction{}, err
	}
	err = s.fillYear(ctx, run)
	if err != nil {
		return Extraction{}, err
	}

	markup, err := s.submit(ctx, run)
	if err != nil {
		s.tel.ReportWarning(report_strategy_case_number, err, run.id)
		return Extraction{}, err
	}
	return s.extractor.OrderInformation(markup, run.query)
}

func (caseNumberStrategy) Usable(result Extraction) bool {
	return result.CaseInfo.CaseNumber != ""
}

// judgmentsStrategy scans the public judgments listing, no form and no
// CAPTCHA is involved.
type judgmentsStrategy struct {
	forms
}

func (judgmentsStrategy) Name() string { return StrategyJudgments }

func (s judgmentsStrategy) Search(ctx context.Context, run *searchRun) (Extraction, error) {
	err := run.session.Home(ctx)
	if err != nil {
		s.tel.ReportWarning(report_strategy_judgments, err, run.id)
		return Extraction{}, err
	}
	err = s.click(ctx, run, s.selectors.JudgmentsLink, "judgments")
	if err != nil {
		return Extraction{}, err
	}
	markup, err := run.session.CurrentMarkup(ctx)
	if err != nil {
		s.tel.ReportWarning(report_strategy_judgments, err, run.id)
		return Extraction{}, err
	}
	return s.extractor.Judgments(markup, run.query)
}

func (judgmentsStrategy) Usable(result Extraction) bool {
	return len(result.Orders) > 0
}
