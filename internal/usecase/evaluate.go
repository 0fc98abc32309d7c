package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/yaccob/teds/internal/domain"
	"github.com/yaccob/teds/internal/infrastructure/parser"
)

const (
	unexpectedlyValid = "UNEXPECTEDLY VALID"
	patternAdvice     = "Consider enforcing the expected format by adding an explicit 'pattern' property to the schema."
)

// CaseEvaluator classifies test cases against resolved schema nodes using
// lenient validation first and strict validation to explain divergences.
type CaseEvaluator struct {
	validator domain.Validator
	parser    *parser.Parser
}

// NewCaseEvaluator creates a new CaseEvaluator
func NewCaseEvaluator(validator domain.Validator) *CaseEvaluator {
	return &CaseEvaluator{
		validator: validator,
		parser:    parser.NewParser(),
	}
}

// Evaluate runs tc against node. label names the schema in messages.
// Payload problems and unexpected results are reported in the Outcome; the
// error is reserved for failures that abort the run.
func (e *CaseEvaluator) Evaluate(ctx context.Context, node *domain.ResolvedNode, label string, tc domain.TestCase) (domain.Outcome, error) {
	var out domain.Outcome
	for _, w := range tc.UserWarnings {
		out.Warnings = append(out.Warnings, domain.Warning{Text: w})
	}

	instance, failed := e.instance(tc, &out)
	if failed {
		return out.Normalize(), nil
	}

	lenient, err := e.validator.Validate(ctx, node, instance, false)
	if err != nil {
		return domain.Outcome{}, err
	}

	if tc.Bucket == domain.BucketInvalid {
		if lenient != nil {
			out.Status = domain.StatusSuccess
			out.ValidationMessage = lenient.Message
			return out.Normalize(), nil
		}
		strict, err := e.validator.Validate(ctx, node, instance, true)
		if err != nil {
			return domain.Outcome{}, err
		}
		out.Status = domain.StatusError
		if strict != nil {
			out.Message = strings.Join([]string{
				unexpectedlyValid,
				"A validator that *ignores* 'format' accepted this instance, while a strict validator (enforcing 'format') might reject it as desired" + formatSuffix(strict.Formats) + ".",
				patternAdvice,
				"",
			}, "\n")
		} else {
			out.Message = unexpectedlyValid + "\npayload is valid under schema " + label
		}
		return out.Normalize(), nil
	}

	if lenient != nil {
		out.Status = domain.StatusError
		out.Message = lenient.Message
		return out.Normalize(), nil
	}
	strict, err := e.validator.Validate(ctx, node, instance, true)
	if err != nil {
		return domain.Outcome{}, err
	}
	out.Status = domain.StatusSuccess
	if strict != nil && len(strict.Formats) > 0 {
		out.Warnings = append(out.Warnings, domain.Warning{
			Generated: strings.Join([]string{
				"Relies on JSON Schema 'format' assertion" + formatSuffix(strict.Formats) + ".",
				"Validators that *enforce* 'format' will reject this instance.",
				patternAdvice,
				"",
			}, "\n"),
			Code: domain.WarningCodeFormatDivergence,
		})
	}
	return out.Normalize(), nil
}

// instance derives the value under test. It reports true when the payload
// could not be parsed; out then carries the ERROR.
func (e *CaseEvaluator) instance(tc domain.TestCase, out *domain.Outcome) (any, bool) {
	if !tc.HasPayload {
		v, err := e.parser.ParseValue(tc.Name)
		if err != nil {
			out.Status = domain.StatusError
			out.Message = fmt.Sprintf("case key is not valid YAML/JSON: %v", err)
			return nil, true
		}
		out.Parsed, out.HasParsed = v, true
		return v, false
	}
	text, isString := tc.Payload.(string)
	if !tc.ParsePayload || !isString {
		return tc.Payload, false
	}
	v, err := e.parser.ParseValue(text)
	if err != nil {
		out.Status = domain.StatusError
		out.Message = fmt.Sprintf("payload is not valid YAML/JSON: %v", err)
		return nil, true
	}
	out.Parsed, out.HasParsed = v, true
	return v, false
}

func formatSuffix(formats []string) string {
	if len(formats) == 0 {
		return ""
	}
	return " (format: " + strings.Join(formats, ", ") + ")"
}
