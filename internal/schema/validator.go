// Package schema validates inbound documents and events before they reach
// the engine.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"conversation-analytics-service/internal/asr"
)

// ErrInvalid marks input that failed validation.
var ErrInvalid = errors.New("schema: invalid input")

// Validator checks struct tags and document consistency.
type Validator struct {
	v *validator.Validate
}

// New creates a validator.
func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate checks the validate tags of a struct, such as an inbound event.
func (v *Validator) Validate(event any) error {
	if err := v.v.Struct(event); err != nil {
		return wrap(err)
	}
	return nil
}

// Document checks a result document's tags and that it has a usable
// topology with well-formed word timings.
func (v *Validator) Document(doc *asr.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrInvalid)
	}
	if err := v.Validate(doc); err != nil {
		return err
	}
	if _, err := doc.Mode(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	check := func(where string, items []asr.Item) error {
		for i, it := range items {
			if it.IsPunctuation() {
				continue
			}
			if it.EndTime < it.StartTime {
				return fmt.Errorf("%w: %s item %d ends at %g before it starts at %g",
					ErrInvalid, where, i, it.EndTime.Float(), it.StartTime.Float())
			}
		}
		return nil
	}
	if err := check("results", doc.Results.Items); err != nil {
		return err
	}
	if cl := doc.Results.ChannelLabels; cl != nil {
		for _, ch := range cl.Channels {
			if err := check(ch.ChannelLabel, ch.Items); err != nil {
				return err
			}
		}
	}
	return nil
}

// wrap flattens validator field errors into one message.
func wrap(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
