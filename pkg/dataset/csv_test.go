package dataset

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowforge/rowforge/pkg/errors"
)

func TestCSVReader_Basic(t *testing.T) {
	input := "id,name,price\n1,Some book,5.00\n2,Other book,7.50\n"
	r, err := NewCSVReader(strings.NewReader(input))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"id", "name", "price"}, r.Headers())

	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, row.Number)
	assert.Equal(t, "Some book", row.Value("name"))

	row, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, row.Number)
	assert.Equal(t, "7.50", row.Value("price"))

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestCSVReader_RaggedRows(t *testing.T) {
	input := "id,name,price\n1,Short\n2,Long,9.99,extra\n"
	r, err := NewCSVReader(strings.NewReader(input))
	require.NoError(t, err)
	defer r.Close()

	row, err := r.Next()
	require.NoError(t, err)
	v, ok := row.Get("price")
	assert.True(t, ok, "missing cells read as empty, column still present")
	assert.Equal(t, "", v)

	row, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "Long", "9.99"}, row.Values(), "extra cells are dropped")
}

func TestCSVReader_EmptyInput(t *testing.T) {
	_, err := NewCSVReader(strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLoad))
	assert.Contains(t, err.Error(), "no header row")
}

func TestCSVReader_Encoding(t *testing.T) {
	// "café" in windows-1252: 'é' is byte 0xE9
	input := []byte("name\ncaf\xe9\n")
	r, err := NewCSVReader(bytes.NewReader(input), WithEncoding("windows-1252"))
	require.NoError(t, err)
	defer r.Close()

	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "café", row.Value("name"))
}

func TestCSVReader_UnknownEncoding(t *testing.T) {
	_, err := NewCSVReader(strings.NewReader("a\n"), WithEncoding("no-such-charset"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestCSVReader_Delimiter(t *testing.T) {
	r, err := NewCSVReader(strings.NewReader("a;b\n1;2\n"), WithDelimiter(';'))
	require.NoError(t, err)
	defer r.Close()

	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "2", row.Value("b"))
}

func TestCSVWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCSVWriter(&buf)
	require.NoError(t, err)

	require.NoError(t, w.WriteHeader([]string{"id", "name"}))
	require.NoError(t, w.WriteRow([]string{"1", "a, quoted"}))
	require.NoError(t, w.Flush())

	assert.Equal(t, "id,name\n1,\"a, quoted\"\n", buf.String())
}

func TestDataset_ReadWrite(t *testing.T) {
	ds := New("id", "name")
	ds.Append("1", "first")
	ds.Append("2", "second")
	assert.Equal(t, 2, ds.Len())

	reader := ds.Read()
	row, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, row.Number)
	assert.Equal(t, "first", row.Value("name"))

	_, err = reader.Next()
	require.NoError(t, err)
	_, err = reader.Next()
	assert.Equal(t, io.EOF, err)

	var buf bytes.Buffer
	w, err := NewCSVWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, ds.WriteTo(w))
	assert.Equal(t, "id,name\n1,first\n2,second\n", buf.String())
}
