// Package tabular streams delimited and spreadsheet files as positional rows.
package tabular

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// ErrParse matches every failure to open or read a source.
var ErrParse = errors.New("failed to parse file")

// ParseError reports where streaming a source failed.
type ParseError struct {
	Source string
	Line   int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s line %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Source is a named, re-openable byte stream. The name's extension selects the format.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// File returns a Source reading a path on local disk.
func File(path string) Source {
	return Source{
		Name: path,
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// Options control how rows are read and which are skipped.
type Options struct {
	Delimiter rune
	// SkipEmptyLines drops lines with no fields or a single empty field.
	SkipEmptyLines bool
	// SkipRecordsWithEmptyValues drops records whose fields are all blank.
	SkipRecordsWithEmptyValues bool
	TrimSpace                  bool
}

// DefaultOptions mirrors the upload contract: comma delimited, empty lines and blank records skipped.
func DefaultOptions() Options {
	return Options{
		Delimiter:                  ',',
		SkipEmptyLines:             true,
		SkipRecordsWithEmptyValues: true,
		TrimSpace:                  true,
	}
}

// Row is one record. The header has Index 0; data rows are numbered from 1 in yield order.
type Row struct {
	Index  int
	Line   int
	Header bool
	Values []string
}

// Value returns the cell at col or "" when the row is short.
func (r Row) Value(col int) string {
	if col < 0 || col >= len(r.Values) {
		return ""
	}
	return r.Values[col]
}

// Table is a fully materialized source.
type Table struct {
	Header []string
	Rows   [][]string
}

type format int

const (
	formatCSV format = iota
	formatXLSX
)

func formatOf(name string) format {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return formatXLSX
	}
	return formatCSV
}

// Rows streams src lazily. Each range over the returned sequence reopens the source.
// After an error is yielded the sequence ends.
func Rows(src Source, opts Options) iter.Seq2[Row, error] {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	return func(yield func(Row, error) bool) {
		if src.Open == nil {
			yield(Row{}, &ParseError{Source: src.Name, Err: errors.New("source has no opener")})
			return
		}
		rc, err := src.Open()
		if err != nil {
			yield(Row{}, &ParseError{Source: src.Name, Err: err})
			return
		}
		defer func() { _ = rc.Close() }()

		var records iter.Seq2[record, error]
		switch formatOf(src.Name) {
		case formatXLSX:
			records = xlsxRecords(rc)
		default:
			records = csvRecords(rc, opts.Delimiter)
		}

		index := 0
		for rec, err := range records {
			if err != nil {
				yield(Row{}, &ParseError{Source: src.Name, Line: rec.line, Err: err})
				return
			}
			values := rec.values
			if opts.TrimSpace {
				values = trimAll(values)
			}
			if opts.SkipEmptyLines && isEmptyLine(values) {
				continue
			}
			if opts.SkipRecordsWithEmptyValues && allBlank(values) {
				continue
			}
			row := Row{Index: index, Line: rec.line, Header: index == 0, Values: values}
			index++
			if !yield(row, nil) {
				return
			}
		}
	}
}

// ReadAll materializes src into a header and its data rows.
func ReadAll(src Source, opts Options) (Table, error) {
	var table Table
	for row, err := range Rows(src, opts) {
		if err != nil {
			return Table{}, err
		}
		if row.Header {
			table.Header = row.Values
			continue
		}
		table.Rows = append(table.Rows, row.Values)
	}
	return table, nil
}

type record struct {
	line   int
	values []string
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func isEmptyLine(values []string) bool {
	return len(values) == 0 || (len(values) == 1 && values[0] == "")
}

func allBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
