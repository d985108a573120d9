package service

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	apperrors "github.com/bond-service/internal/errors"
)

const msgRequired = "This field is required."

// fieldErrors collects per-field validation messages
type fieldErrors map[string]string

func (f fieldErrors) add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	details := make(map[string]interface{}, len(f))
	message := "Invalid input."
	for field, msg := range f {
		details[field] = msg
		if len(f) == 1 {
			message = msg
		}
	}
	return &apperrors.CategorizedError{
		Category:   apperrors.CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
		Message:    message,
		Details:    details,
	}
}

func (f fieldErrors) text(field, value string, maxLen int) {
	switch {
	case strings.TrimSpace(value) == "":
		f.add(field, "This field may not be blank.")
	case utf8.RuneCountInString(value) > maxLen:
		f.add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", maxLen))
	}
}

// amount checks a non-negative value of at most maxDigits digits, places of them fractional
func (f fieldErrors) amount(field string, value decimal.Decimal, maxDigits, places int32) {
	if value.IsNegative() {
		f.add(field, "Ensure this value is greater than or equal to 0.")
		return
	}
	if !value.Equal(value.Round(places)) {
		f.add(field, fmt.Sprintf("Ensure that there are no more than %d decimal places.", places))
		return
	}
	whole := maxDigits - places
	if value.GreaterThanOrEqual(decimal.New(1, whole)) {
		f.add(field, fmt.Sprintf("Ensure that there are no more than %d digits before the decimal point.", whole))
	}
}
