package validator

import (
	"net/url"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

// Rule names understood by ValidateFields.
const (
	RuleEmail       = "email"
	RuleURL         = "url"
	RuleOptionalURL = "omitempty,url"
)

// FieldValidator checks single string values against format rules.
type FieldValidator struct {
	validate *playground.Validate
}

// NewFieldValidator creates a new field validator
func NewFieldValidator() *FieldValidator {
	return &FieldValidator{validate: playground.New()}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  []ValidationError `json:"errors"`
}

// IsEmail reports whether value is a syntactically valid email address.
func (v *FieldValidator) IsEmail(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	return v.validate.Var(value, "email") == nil
}

// IsURL reports whether value is an absolute URL with a dotted host.
// A missing scheme is treated as https, so "linkedin.com/in/someone" passes.
func (v *FieldValidator) IsURL(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" || strings.ContainsAny(value, " \t") {
		return false
	}
	if !strings.Contains(value, "://") {
		value = "https://" + value
	}
	if v.validate.Var(value, "url") != nil {
		return false
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	host := parsed.Hostname()
	return strings.Contains(host, ".") && !strings.HasPrefix(host, ".") && !strings.HasSuffix(host, ".")
}

// ValidateFields checks each named value against its rule. Fields are checked in the
// order given and every violation is reported.
func (v *FieldValidator) ValidateFields(fields []string, values map[string]string, rules map[string]string) ValidationResult {
	result := ValidationResult{IsValid: true, Errors: []ValidationError{}}
	for _, field := range fields {
		rule, ok := rules[field]
		if !ok {
			continue
		}
		value := values[field]
		if msg := v.check(rule, value); msg != "" {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{Field: field, Message: msg, Value: value})
		}
	}
	return result
}

func (v *FieldValidator) check(rule, value string) string {
	switch rule {
	case RuleEmail:
		if !v.IsEmail(value) {
			return "must be a valid email address"
		}
	case RuleURL:
		if !v.IsURL(value) {
			return "must be a valid URL"
		}
	case RuleOptionalURL:
		if strings.TrimSpace(value) != "" && !v.IsURL(value) {
			return "must be a valid URL"
		}
	}
	return ""
}
