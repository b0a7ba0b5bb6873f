package tabular

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/xuri/excelize/v2"
)

func xlsxRecords(r io.Reader) iter.Seq2[record, error] {
	return func(yield func(record, error) bool) {
		f, err := excelize.OpenReader(r)
		if err != nil {
			yield(record{}, fmt.Errorf("failed to open xlsx: %w", err))
			return
		}
		defer func() { _ = f.Close() }()

		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			yield(record{}, errors.New("excel file has no sheets"))
			return
		}

		rows, err := f.Rows(sheets[0])
		if err != nil {
			yield(record{}, fmt.Errorf("failed to read rows from xlsx: %w", err))
			return
		}
		defer func() { _ = rows.Close() }()

		line := 0
		for rows.Next() {
			line++
			values, err := rows.Columns()
			if err != nil {
				yield(record{line: line}, err)
				return
			}
			if !yield(record{line: line, values: values}, nil) {
				return
			}
		}
		if err := rows.Error(); err != nil {
			yield(record{line: line}, err)
		}
	}
}
