package common

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/medimage2report/constants"
)

// ValidationError is one failed rule on one field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s %s (got %v)", e.Field, e.Message, e.Value)
}

// Validator collects rule failures across fields; rules keep running after a failure
// so callers see every problem with an upload at once.
type Validator struct {
	failures []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field applies rules to value in order.
func (v *Validator) Field(name string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if f := rule(name, value); f != nil {
			v.failures = append(v.failures, *f)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool { return len(v.failures) > 0 }

func (v *Validator) ErrorMessage() string {
	msgs := make([]string, len(v.failures))
	for i, f := range v.failures {
		msgs[i] = f.Error()
	}
	return strings.Join(msgs, "; ")
}

// Err returns nil or an error wrapping ErrInvalidInput.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, v.ErrorMessage())
}

// ValidationRule inspects one field value; nil means it passed.
type ValidationRule func(name string, value any) *ValidationError

func Required(name string, value any) *ValidationError {
	missing := &ValidationError{Field: name, Message: "is required"}
	switch x := value.(type) {
	case nil:
		return missing
	case string:
		if strings.TrimSpace(x) == "" {
			return missing
		}
	case []byte:
		if len(x) == 0 {
			return missing
		}
	}
	return nil
}

// MaxLength limits a string to max runes. Non-strings pass.
func MaxLength(max int) ValidationRule {
	return func(name string, value any) *ValidationError {
		s, ok := value.(string)
		if ok && utf8.RuneCountInString(s) > max {
			return &ValidationError{Field: name, Message: fmt.Sprintf("must be at most %d characters", max)}
		}
		return nil
	}
}

// UUID requires a parseable UUID string. Empty strings are left to Required.
func UUID(name string, value any) *ValidationError {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return &ValidationError{Field: name, Value: s, Message: "must be a UUID"}
	}
	return nil
}

// PDFFilename requires a filename with an allowed extension.
func PDFFilename(name string, value any) *ValidationError {
	s, _ := value.(string)
	i := strings.LastIndex(s, ".")
	if i < 0 || !constants.IsAllowedExt(s[i:]) {
		return &ValidationError{Field: name, Value: s, Message: "must be a .pdf file"}
	}
	return nil
}

// PDFContent requires bytes that start with the PDF header and fit the upload limit.
func PDFContent(name string, value any) *ValidationError {
	b, _ := value.([]byte)
	if !constants.HasPDFHeader(b) {
		return &ValidationError{Field: name, Message: "is not a PDF document"}
	}
	if len(b) > constants.MaxUploadBytes {
		return &ValidationError{Field: name, Value: len(b), Message: "exceeds the upload size limit"}
	}
	return nil
}

// ValidateAndReturnError maps collected failures to an InvalidArgument status.
func ValidateAndReturnError(v *Validator) error {
	if v.HasErrors() {
		return InvalidArgumentError(v.ErrorMessage())
	}
	return nil
}
