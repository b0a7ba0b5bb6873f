package ingestion

import (
	"mime"
	"slices"
	"strings"

	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/pkg/validator"
)

// Column positions of the upload contract.
const (
	ColFirstName = iota
	ColLastName
	ColEmail
	ColLinkedIn
	ColPhoneNumber
	ColPosition
)

// ExpectedHeader is the exact header row every upload must carry.
var ExpectedHeader = []string{"First Name", "Last Name", "Email", "LinkedIn", "Phone Number", "Position"}

// DefaultAcceptedMimeTypes covers CSV and the two spreadsheet flavours clients send it as.
var DefaultAcceptedMimeTypes = []string{
	"text/csv",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

const (
	fieldEmail    = "email"
	fieldLinkedIn = "linkedin"
)

var rowRules = map[string]string{
	fieldEmail:    validator.RuleEmail,
	fieldLinkedIn: validator.RuleOptionalURL,
}

var rowFieldOrder = []string{fieldEmail, fieldLinkedIn}

// Validator checks an upload against the person file contract. It holds no state besides
// its configuration and is safe for concurrent use.
type Validator struct {
	accepted []string
	fields   *validator.FieldValidator
}

// NewValidator creates a validator accepting the given MIME types, or the defaults when none are given.
func NewValidator(accepted []string) *Validator {
	if len(accepted) == 0 {
		accepted = DefaultAcceptedMimeTypes
	}
	normalized := make([]string, 0, len(accepted))
	for _, mt := range accepted {
		if mt = strings.ToLower(strings.TrimSpace(mt)); mt != "" {
			normalized = append(normalized, mt)
		}
	}
	return &Validator{accepted: normalized, fields: validator.NewFieldValidator()}
}

// AcceptedMimeTypes returns a copy of the configured MIME types.
func (v *Validator) AcceptedMimeTypes() []string {
	return slices.Clone(v.accepted)
}

// ValidateMediaType rejects MIME types outside the accepted set. Parameters are ignored.
func (v *Validator) ValidateMediaType(mimeType string) error {
	base := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		base = parsed
	}
	if slices.Contains(v.accepted, base) {
		return nil
	}
	return &domain.MediaTypeError{Accepted: v.AcceptedMimeTypes(), Actual: mimeType}
}

// ValidateHeader requires the header to equal ExpectedHeader in order and case.
func (v *Validator) ValidateHeader(header []string) error {
	if slices.Equal(header, ExpectedHeader) {
		return nil
	}
	return &domain.SchemaError{Expected: slices.Clone(ExpectedHeader), Actual: slices.Clone(header)}
}

// ValidateRow checks one data row. index is the 1-based data row number.
func (v *Validator) ValidateRow(index int, row []string) error {
	values := map[string]string{
		fieldEmail:    cell(row, ColEmail),
		fieldLinkedIn: cell(row, ColLinkedIn),
	}
	result := v.fields.ValidateFields(rowFieldOrder, values, rowRules)
	if result.IsValid {
		return nil
	}
	first := result.Errors[0]
	return &domain.RowError{
		Row:    index,
		Field:  first.Field,
		Value:  values[first.Field],
		Values: slices.Clone(row),
	}
}

// Validate runs every check in contract order and returns the first violation.
func (v *Validator) Validate(mimeType string, header []string, rows [][]string) error {
	if err := v.ValidateMediaType(mimeType); err != nil {
		return err
	}
	if err := v.ValidateHeader(header); err != nil {
		return err
	}
	if len(rows) == 0 {
		return &domain.EmptyUploadError{}
	}
	for i, row := range rows {
		if err := v.ValidateRow(i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func cell(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}

// personFromRow maps a validated row onto a pending person.
func personFromRow(row []string, uploadID, ownerCompanyID int64) domain.Person {
	return domain.NewPerson(
		cell(row, ColFirstName),
		cell(row, ColLastName),
		cell(row, ColEmail),
		cell(row, ColPhoneNumber),
		cell(row, ColLinkedIn),
		cell(row, ColPosition),
		uploadID,
		ownerCompanyID,
	)
}
