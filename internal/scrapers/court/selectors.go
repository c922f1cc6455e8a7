package court

import (
	"fmt"

	"courtcase-backend/internal/components/browser"
)

// Selectors holds the locator candidates of every UI element the strategies
// touch. It is plain data so a layout change on the site is a config change.
type Selectors struct {
	OrderInfoLink   browser.Locator `json:"order_info_link"`
	PartyNameLink   browser.Locator `json:"party_name_link"`
	PartyNameInput  browser.Locator `json:"party_name_input"`
	CaseNumberLink  browser.Locator `json:"case_number_link"`
	CaseTypeSelect  browser.Locator `json:"case_type_select"`
	CaseNumberInput browser.Locator `json:"case_number_input"`
	YearInput       browser.Locator `json:"year_input"`
	SubmitButton    browser.Locator `json:"submit_button"`
	JudgmentsLink   browser.Locator `json:"judgments_link"`
	CaptchaImage    browser.Locator `json:"captcha_image"`
	CaptchaInput    browser.Locator `json:"captcha_input"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		OrderInfoLink: browser.Locator{
			browser.LinkHref("order"),
			browser.LinkHref("information"),
			browser.LinkText("order information"),
		},
		PartyNameLink: browser.Locator{
			browser.LinkHref("party"),
			browser.LinkText("party name"),
			browser.InputName("party"),
		},
		PartyNameInput: browser.Locator{
			browser.CSS(`input[name*="party"]`),
			browser.CSS(`input[name*="name"]`),
			browser.CSS("#party_name"),
			browser.CSS(".party-name"),
		},
		CaseNumberLink: browser.Locator{
			browser.LinkHref("case"),
			browser.LinkText("case number"),
			browser.InputName("case"),
		},
		CaseTypeSelect: browser.Locator{
			browser.CSS(`select[name*="case_type"]`),
			browser.CSS("#case_type"),
			browser.CSS(".case-type"),
		},
		CaseNumberInput: browser.Locator{
			browser.CSS(`input[name*="case_number"]`),
			browser.CSS("#case_number"),
			browser.CSS(".case-number"),
		},
		YearInput: browser.Locator{
			browser.CSS(`input[name*="year"]`),
			browser.CSS("#year"),
			browser.CSS(".year-input"),
		},
		SubmitButton: browser.Locator{
			browser.CSS(`input[type="submit"]`),
			browser.CSS(`button[type="submit"]`),
			browser.CSS(".submit-btn"),
		},
		JudgmentsLink: browser.Locator{
			browser.LinkHref("judgment"),
			browser.LinkText("judgments"),
			browser.LinkText("latest judgments"),
		},
		CaptchaImage: browser.Locator{
			browser.CSS(`img[src*="captcha"]`),
			browser.CSS(".captcha"),
			browser.CSS("#captcha"),
		},
		CaptchaInput: browser.Locator{
			browser.CSS(`input[name*="captcha"]`),
			browser.CSS("#captcha"),
			browser.CSS(".captcha-input"),
		},
	}
}

func (s *Selectors) fields() map[string]*browser.Locator {
	return map[string]*browser.Locator{
		"order_info_link":   &s.OrderInfoLink,
		"party_name_link":   &s.PartyNameLink,
		"party_name_input":  &s.PartyNameInput,
		"case_number_link":  &s.CaseNumberLink,
		"case_type_select":  &s.CaseTypeSelect,
		"case_number_input": &s.CaseNumberInput,
		"year_input":        &s.YearInput,
		"submit_button":     &s.SubmitButton,
		"judgments_link":    &s.JudgmentsLink,
		"captcha_image":     &s.CaptchaImage,
		"captcha_input":     &s.CaptchaInput,
	}
}

// WithDefaults returns a copy of s where every empty locator is replaced by
// its default.
func (s Selectors) WithDefaults() Selectors {
	defaults := DefaultSelectors()
	defaultFields := defaults.fields()
	for name, loc := range s.fields() {
		if len(*loc) == 0 {
			*loc = *defaultFields[name]
		}
	}
	return s
}

func (s Selectors) Validate() error {
	for name, loc := range s.fields() {
		err := loc.Validate()
		if err != nil {
			return fmt.Errorf("selector %s: %w", name, err)
		}
	}
	return nil
}
