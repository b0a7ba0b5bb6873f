package validator

import "testing"

func TestFieldValidatorEmail(t *testing.T) {
	v := NewFieldValidator()

	for _, value := range []string{"ada@example.com", " alan.turing@bletchley.co.uk "} {
		if !v.IsEmail(value) {
			t.Errorf("expected %q to be a valid email", value)
		}
	}
	for _, value := range []string{"", "not-an-email", "a@", "@example.com"} {
		if v.IsEmail(value) {
			t.Errorf("expected %q to be rejected", value)
		}
	}
}

func TestFieldValidatorURL(t *testing.T) {
	v := NewFieldValidator()

	for _, value := range []string{
		"https://www.linkedin.com/in/ada",
		"http://linkedin.com/in/ada",
		"linkedin.com/in/ada",
	} {
		if !v.IsURL(value) {
			t.Errorf("expected %q to be a valid url", value)
		}
	}
	for _, value := range []string{"", "not a url", "ftp://files.example.com", "https://localhost", "linkedin"} {
		if v.IsURL(value) {
			t.Errorf("expected %q to be rejected", value)
		}
	}
}

func TestValidateFieldsReportsEveryViolation(t *testing.T) {
	v := NewFieldValidator()
	rules := map[string]string{"email": RuleEmail, "linkedin": RuleOptionalURL}

	result := v.ValidateFields([]string{"email", "linkedin"}, map[string]string{"email": "ada@example.com", "linkedin": ""}, rules)
	if !result.IsValid {
		t.Fatalf("expected empty optional url to pass, got %+v", result.Errors)
	}

	result = v.ValidateFields([]string{"email", "linkedin"}, map[string]string{"email": "nope", "linkedin": "nope"}, rules)
	if result.IsValid || len(result.Errors) != 2 {
		t.Fatalf("expected two errors, got %+v", result)
	}
	if result.Errors[0].Field != "email" || result.Errors[1].Field != "linkedin" {
		t.Fatalf("expected errors in field order, got %+v", result.Errors)
	}
}
