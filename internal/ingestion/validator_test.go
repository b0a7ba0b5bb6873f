package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/leadstream/internal/domain"
)

func TestValidateMediaType(t *testing.T) {
	v := NewValidator(nil)
	for _, mt := range []string{
		"text/csv",
		"TEXT/CSV; charset=utf-8",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	} {
		assert.NoError(t, v.ValidateMediaType(mt), mt)
	}

	err := v.ValidateMediaType("application/json")
	var mediaErr *domain.MediaTypeError
	require.ErrorAs(t, err, &mediaErr)
	assert.Equal(t, "application/json", mediaErr.Actual)
	assert.Equal(t, DefaultAcceptedMimeTypes, mediaErr.Accepted)
}

func TestValidateHeaderIsExact(t *testing.T) {
	v := NewValidator(nil)
	require.NoError(t, v.ValidateHeader(ExpectedHeader))

	err := v.ValidateHeader([]string{"First Name", "Last Name", "Email"})
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, ExpectedHeader, schemaErr.Expected)
	assert.Len(t, schemaErr.Actual, 3)
}

func TestValidateRowReportsFirstViolation(t *testing.T) {
	v := NewValidator(nil)

	assert.NoError(t, v.ValidateRow(1, []string{"A", "B", "a@b.co", "", "", ""}))
	assert.NoError(t, v.ValidateRow(1, []string{"A", "B", "a@b.co", "https://www.linkedin.com/in/ab"}))

	err := v.ValidateRow(4, []string{"A", "B", "bad", "also bad"})
	var rowErr *domain.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 4, rowErr.Row)
	assert.Equal(t, "email", rowErr.Field)

	err = v.ValidateRow(5, []string{"A", "B", "a@b.co", "ftp://files.example.com"})
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "linkedin", rowErr.Field)

	// Short rows are treated as missing trailing cells.
	err = v.ValidateRow(6, []string{"A", "B"})
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "email", rowErr.Field)
	assert.Empty(t, rowErr.Value)
}

func TestValidateEmptyUpload(t *testing.T) {
	err := NewValidator(nil).Validate("text/csv", ExpectedHeader, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyUpload)
	assert.ErrorIs(t, err, domain.ErrInvalidRow)
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DuplicatePolicyReject, p)

	p, err = ParseDuplicatePolicy(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, DuplicatePolicyWarn, p)

	_, err = ParseDuplicatePolicy("merge")
	assert.Error(t, err)
}
