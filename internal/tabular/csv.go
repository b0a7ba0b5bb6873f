package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"iter"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

func csvRecords(r io.Reader, delimiter rune) iter.Seq2[record, error] {
	return func(yield func(record, error) bool) {
		reader := bufio.NewReader(r)
		if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
			_, _ = reader.Discard(len(byteOrderMark))
		}

		csvReader := csv.NewReader(reader)
		csvReader.Comma = delimiter
		csvReader.TrimLeadingSpace = true
		csvReader.FieldsPerRecord = -1

		for {
			values, err := csvReader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var line int
				var parseErr *csv.ParseError
				if errors.As(err, &parseErr) {
					line = parseErr.Line
				}
				yield(record{line: line}, err)
				return
			}
			line, _ := csvReader.FieldPos(0)
			if !yield(record{line: line, values: values}, nil) {
				return
			}
		}
	}
}
