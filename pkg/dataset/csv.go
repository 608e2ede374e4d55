package dataset

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"github.com/rowforge/rowforge/pkg/errors"
)

// CSVOption configures a CSV reader or writer
type CSVOption func(*csvOptions)

type csvOptions struct {
	delimiter rune
	encoding  string
}

// WithDelimiter overrides the field delimiter (default ',')
func WithDelimiter(d rune) CSVOption {
	return func(o *csvOptions) { o.delimiter = d }
}

// WithEncoding decodes/encodes the byte stream with the named IANA charset
// (e.g. "windows-1252", "ISO-8859-1"). Default is UTF-8 passthrough.
func WithEncoding(name string) CSVOption {
	return func(o *csvOptions) { o.encoding = name }
}

// CSVReader reads rows from a CSV byte stream
type CSVReader struct {
	reader  *csv.Reader
	closer  io.Closer
	headers []string
	rowNum  int
}

// NewCSVReader builds a reader over r. The first record is consumed as the
// header list. If r is an io.Closer, Close closes it.
func NewCSVReader(r io.Reader, opts ...CSVOption) (*CSVReader, error) {
	o := &csvOptions{delimiter: ','}
	for _, opt := range opts {
		opt(o)
	}

	decoded, err := decodeStream(r, o.encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(decoded)
	cr.Comma = o.delimiter
	cr.FieldsPerRecord = -1 // allow ragged rows, the mapping layer fills gaps

	headers, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New(errors.ErrorTypeLoad, "dataset is empty: no header row")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeLoad, "failed to read header row")
	}

	reader := &CSVReader{reader: cr, headers: headers}
	if closer, ok := r.(io.Closer); ok {
		reader.closer = closer
	}
	return reader, nil
}

// Headers returns the ordered header list
func (r *CSVReader) Headers() []string {
	return r.headers
}

// Next returns the next row or io.EOF
func (r *CSVReader) Next() (*Row, error) {
	record, err := r.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, errors.ErrorTypeLoad, "failed to read row").
			WithDetail("row", r.rowNum+1)
	}
	r.rowNum++
	return NewRow(r.rowNum, r.headers, record), nil
}

// Close closes the underlying source if it is closeable
func (r *CSVReader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// CSVWriter writes rows to a CSV byte stream
type CSVWriter struct {
	writer *csv.Writer
}

// NewCSVWriter builds a writer over w
func NewCSVWriter(w io.Writer, opts ...CSVOption) (*CSVWriter, error) {
	o := &csvOptions{delimiter: ','}
	for _, opt := range opts {
		opt(o)
	}

	encoded, err := encodeStream(w, o.encoding)
	if err != nil {
		return nil, err
	}

	cw := csv.NewWriter(encoded)
	cw.Comma = o.delimiter
	return &CSVWriter{writer: cw}, nil
}

// WriteHeader writes the header record
func (w *CSVWriter) WriteHeader(columns []string) error {
	return w.writer.Write(columns)
}

// WriteRow writes one data record
func (w *CSVWriter) WriteRow(values []string) error {
	return w.writer.Write(values)
}

// Flush flushes buffered output and reports any write error
func (w *CSVWriter) Flush() error {
	w.writer.Flush()
	return w.writer.Error()
}

func decodeStream(r io.Reader, encodingName string) (io.Reader, error) {
	if encodingName == "" {
		return r, nil
	}
	enc, err := ianaindex.IANA.Encoding(encodingName)
	if err != nil || enc == nil {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown encoding %q", encodingName)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func encodeStream(w io.Writer, encodingName string) (io.Writer, error) {
	if encodingName == "" {
		return w, nil
	}
	enc, err := ianaindex.IANA.Encoding(encodingName)
	if err != nil || enc == nil {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown encoding %q", encodingName)
	}
	return transform.NewWriter(w, enc.NewEncoder()), nil
}
