// Package export streams an upload's persons, joined with their enrichment results, as CSV or XLSX.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/internal/repository"
)

// Format selects the export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat reads a format name. Empty selects CSV.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", domain.ErrValidation, value)
	}
}

// ContentType returns the MIME type of the encoded export.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

const sheetName = "Persons"

var columns = []string{
	"Person ID",
	"First Name",
	"Last Name",
	"Full Name",
	"Email",
	"Phone Number",
	"LinkedIn",
	"Position",
	"Enrichment Status",
	"Enriched Full Name",
	"Enriched Email",
	"Enriched Position",
	"Enriched LinkedIn",
	"Company Name",
	"Company Address",
	"Gender",
	"Created At",
}

// Service writes an upload's persons and their enrichment results to a file.
type Service struct {
	store    repository.Store
	pageSize int
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPageSize sets how many persons are read per query.
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates an export service.
func NewService(store repository.Store, opts ...Option) *Service {
	service := &Service{
		store:    store,
		pageSize: domain.MaxPageSize,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Request describes one export.
type Request struct {
	UploadID int64
	Format   Format
	Statuses []domain.EnrichmentStatus
}

// Result summarizes a written export.
type Result struct {
	FileName string
	Rows     int
	Bytes    int64
}

// FileName returns the download name for an upload export.
func (s *Service) FileName(upload domain.Upload, format Format) string {
	base := strings.TrimSuffix(upload.FileName, fileExt(upload.FileName))
	name := sanitizeFileComponent(base)
	if name == "" {
		name = "upload"
	}
	return fmt.Sprintf("%s-%d-enriched-%s.%s", name, upload.ID, s.now().UTC().Format("20060102"), format)
}

// Export writes every matching person of the upload to w.
func (s *Service) Export(ctx context.Context, req Request, w io.Writer) (Result, error) {
	if req.Format == "" {
		req.Format = FormatCSV
	}
	upload, err := s.store.Uploads().GetByID(ctx, req.UploadID)
	if err != nil {
		return Result{}, err
	}

	result := Result{FileName: s.FileName(upload, req.Format)}
	var sink rowSink
	switch req.Format {
	case FormatCSV:
		sink = newCSVSink(w)
	case FormatXLSX:
		sink, err = newXLSXSink(w)
		if err != nil {
			return Result{}, err
		}
	default:
		return Result{}, fmt.Errorf("%w: unknown export format %q", domain.ErrValidation, req.Format)
	}
	defer sink.Close()

	if err := sink.WriteRow(columns); err != nil {
		return Result{}, fmt.Errorf("write header: %w", err)
	}

	filter := domain.PersonFilter{UploadID: upload.ID, Statuses: req.Statuses}
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		persons, total, err := s.store.Persons().List(ctx, filter, domain.Pagination{Page: page, PageSize: s.pageSize})
		if err != nil {
			return Result{}, fmt.Errorf("list persons: %w", err)
		}
		if len(persons) == 0 {
			break
		}

		ids := make([]int64, len(persons))
		for i, p := range persons {
			ids[i] = p.ID
		}
		results, err := s.store.Enrichments().ResultsByPersonIDs(ctx, ids)
		if err != nil {
			return Result{}, fmt.Errorf("load enrichment results: %w", err)
		}

		for _, p := range persons {
			res, ok := results[p.ID]
			if err := sink.WriteRow(personRow(p, res, ok)); err != nil {
				return Result{}, fmt.Errorf("write row: %w", err)
			}
			result.Rows++
		}
		if result.Rows >= total {
			break
		}
	}

	n, err := sink.Finish()
	if err != nil {
		return Result{}, err
	}
	result.Bytes = n

	s.logger.Info("upload exported",
		zap.Int64("upload_id", upload.ID),
		zap.String("format", string(req.Format)),
		zap.Int("rows", result.Rows),
		zap.Int64("bytes", result.Bytes),
	)
	return result, nil
}

func personRow(p domain.Person, res domain.EnrichmentResult, enriched bool) []string {
	row := []string{
		strconv.FormatInt(p.ID, 10),
		p.FirstName,
		p.LastName,
		p.FullName,
		p.Email,
		p.PhoneNumber,
		p.LinkedinProfileURL,
		p.Position,
		string(p.EnrichmentStatus),
		"", "", "", "", "", "", "",
		p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if enriched {
		copy(row[9:16], []string{
			res.FullName,
			res.Email,
			res.Position,
			res.LinkedinURL,
			res.CompanyName,
			res.CompanyAddress,
			res.Gender,
		})
	}
	return row
}

type rowSink interface {
	WriteRow(values []string) error
	// Finish flushes the encoding and returns the bytes written.
	Finish() (int64, error)
	Close() error
}

type csvSink struct {
	buffered *bufio.Writer
	counter  *countingWriter
	writer   *csv.Writer
}

func newCSVSink(w io.Writer) *csvSink {
	counter := &countingWriter{writer: w}
	buffered := bufio.NewWriterSize(counter, 64<<10)
	return &csvSink{buffered: buffered, counter: counter, writer: csv.NewWriter(buffered)}
}

func (c *csvSink) WriteRow(values []string) error { return c.writer.Write(values) }

func (c *csvSink) Finish() (int64, error) {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}
	if err := c.buffered.Flush(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}
	return c.counter.count, nil
}

func (c *csvSink) Close() error { return nil }

type xlsxSink struct {
	out    io.Writer
	file   *excelize.File
	stream *excelize.StreamWriter
	row    int
}

func newXLSXSink(w io.Writer) (*xlsxSink, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("prepare workbook: %w", err)
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("prepare workbook: %w", err)
	}
	return &xlsxSink{out: w, file: f, stream: sw}, nil
}

func (x *xlsxSink) WriteRow(values []string) error {
	x.row++
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return x.stream.SetRow(cell, cells)
}

func (x *xlsxSink) Finish() (int64, error) {
	if err := x.stream.Flush(); err != nil {
		return 0, fmt.Errorf("flush workbook: %w", err)
	}
	counter := &countingWriter{writer: x.out}
	if _, err := x.file.WriteTo(counter); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return counter.count, nil
}

func (x *xlsxSink) Close() error { return x.file.Close() }

func fileExt(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[i:]
	}
	return ""
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "export"
	}
	return result
}

type countingWriter struct {
	writer io.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}
