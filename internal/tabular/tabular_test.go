package tabular

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestRowsStripsBOMAndSkipsBlankRecords(t *testing.T) {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("First Name,Last Name\n\nAda,Lovelace\n , \nAlan,Turing\n")...)
	path := writeFile(t, "people.csv", content)

	table, err := ReadAll(File(path), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"First Name", "Last Name"}, table.Header)
	assert.Equal(t, [][]string{{"Ada", "Lovelace"}, {"Alan", "Turing"}}, table.Rows)
}

func TestRowsIndexesDataRowsFromOne(t *testing.T) {
	path := writeFile(t, "people.csv", []byte("a,b\n1,2\n3,4\n"))

	var indexes []int
	for row, err := range Rows(File(path), DefaultOptions()) {
		require.NoError(t, err)
		indexes = append(indexes, row.Index)
		if row.Index == 0 {
			assert.True(t, row.Header)
		}
	}
	assert.Equal(t, []int{0, 1, 2}, indexes)
}

func TestRowsIsRestartable(t *testing.T) {
	path := writeFile(t, "people.csv", []byte("a,b\n1,2\n3,4\n"))
	seq := Rows(File(path), DefaultOptions())

	count := func() int {
		n := 0
		for _, err := range seq {
			require.NoError(t, err)
			n++
		}
		return n
	}
	assert.Equal(t, 3, count())
	assert.Equal(t, 3, count())

	// Stopping early must not break a later full pass.
	for range seq {
		break
	}
	assert.Equal(t, 3, count())
}

func TestRowsKeepsRaggedRowsPositional(t *testing.T) {
	path := writeFile(t, "people.csv", []byte("a,b,c\n1\n1,2,3,4\n"))

	table, err := ReadAll(File(path), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"1"}, table.Rows[0])
	assert.Equal(t, []string{"1", "2", "3", "4"}, table.Rows[1])

	row := Row{Values: table.Rows[0]}
	assert.Equal(t, "", row.Value(2))
}

func TestRowsCustomDelimiter(t *testing.T) {
	path := writeFile(t, "people.csv", []byte("a;b\n1;2\n"))
	opts := DefaultOptions()
	opts.Delimiter = ';'

	table, err := ReadAll(File(path), opts)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}}, table.Rows)
}

func TestRowsMissingFileIsParseError(t *testing.T) {
	_, err := ReadAll(File(filepath.Join(t.TempDir(), "missing.csv")), DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRowsMalformedQuoteReportsLine(t *testing.T) {
	path := writeFile(t, "people.csv", []byte("a,b\n1,2\n\"broken,3\n"))

	_, err := ReadAll(File(path), DefaultOptions())
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Greater(t, parseErr.Line, 0)
}

func TestRowsReadsFirstXLSXSheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"First Name", "Last Name"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Ada", "Lovelace"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	src := Source{
		Name: "people.xlsx",
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(buf.Bytes())), nil },
	}
	table, err := ReadAll(src, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"First Name", "Last Name"}, table.Header)
	assert.Equal(t, [][]string{{"Ada", "Lovelace"}}, table.Rows)
}
