package court

import (
	"context"
	"errors"
	"fmt"

	"courtcase-backend/internal/components/captcha"
)

const report_orchestrator_strategy = "orchestrator.strategy"

// orchestrate runs the strategies in their fixed order and returns the first
// usable extraction. When nothing is found the first CAPTCHA failure seen is
// returned if there was one. A NotFoundError is only returned when at least
// one strategy ran to completion, otherwise the first strategy error is.
func (e Engine) orchestrate(ctx context.Context, run *searchRun) (string, Extraction, error) {
	var captchaErr, firstErr error
	completed := false
	for _, s := range e.strategies {
		err := ctx.Err()
		if err != nil {
			return "", Extraction{}, err
		}

		e.tel.ReportDebug("trying strategy", s.Name(), run.id)
		result, err := s.Search(ctx, run)
		switch {
		case err == nil:
			completed = true
		case errors.Is(err, ErrNotFound):
			completed = true
			continue
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", Extraction{}, ctxErr
			}
			if errors.Is(err, captcha.ErrCaptcha) {
				if captchaErr == nil {
					captchaErr = err
				}
			} else if firstErr == nil {
				firstErr = fmt.Errorf("%s strategy: %w", s.Name(), err)
			}
			e.tel.ReportWarning(report_orchestrator_strategy, err, s.Name(), run.id)
			continue
		}
		if s.Usable(result) {
			return s.Name(), result, nil
		}
	}

	if captchaErr != nil {
		return "", Extraction{}, captchaErr
	}
	if !completed && firstErr != nil {
		return "", Extraction{}, firstErr
	}
	return "", Extraction{}, &NotFoundError{Reason: "no search strategy produced results"}
}

// Classify maps the error that ended a search to its outcome status.
func Classify(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, captcha.ErrCaptcha):
		return StatusCaptchaFailed
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	default:
		return StatusError
	}
}
