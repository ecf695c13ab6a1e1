package tear

import (
	"errors"
	"fmt"

	"github.com/ostrovsky/tearloop/internal/extractor"
	"github.com/ostrovsky/tearloop/internal/translator"
)

// ValidationError marks a programming-contract violation: the loop was
// invoked with inputs that can never succeed (empty chunk text, missing
// snapshot). It is surfaced immediately and never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("contract violation: %s", e.Msg)
}

// retryable reports whether an error is worth another attempt within the
// chunk's retry budget. Only external-call failures qualify; schema and
// contract violations are not transport problems and retrying them would
// just re-spend the budget on a deterministic failure.
func retryable(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	var se *extractor.SchemaError
	if errors.As(err, &se) {
		return false
	}
	return translator.IsExternal(err)
}
