package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeCSV reads a UTF-8 CSV document whose first record is the header.
func DecodeCSV(r io.Reader) (*Dataset, error) {
	return DecodeCSVCharset(r, "")
}

// DecodeCSVCharset reads a CSV document in the named charset (any WHATWG
// label such as "windows-1251"). An empty charset means UTF-8.
func DecodeCSVCharset(r io.Reader, charset string) (*Dataset, error) {
	if charset != "" {
		enc, err := lookupCharset(charset)
		if err != nil {
			return nil, err
		}
		r = enc.NewDecoder().Reader(r)
	}

	br := bufio.NewReader(r)
	bom := false
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		bom = true
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "dataset: parse csv")
	}
	if len(records) == 0 {
		return nil, eris.New("dataset: csv has no header row")
	}

	d, err := New(records[0], records[1:])
	if err != nil {
		return nil, err
	}
	d.BOM = bom
	d.Charset = charset
	return d, nil
}

// EncodeCSV writes the header and all rows as CSV in the dataset's charset.
// Characters the charset cannot represent are replaced.
func EncodeCSV(w io.Writer, d *Dataset) error {
	if d.Charset != "" {
		enc, err := lookupCharset(d.Charset)
		if err != nil {
			return err
		}
		tw := encoding.ReplaceUnsupported(enc.NewEncoder()).Writer(w)
		if err := writeCSV(tw, d); err != nil {
			return err
		}
		if c, ok := tw.(io.Closer); ok {
			return eris.Wrap(c.Close(), "dataset: flush charset encoder")
		}
		return nil
	}
	return writeCSV(w, d)
}

func writeCSV(w io.Writer, d *Dataset) error {
	if d.BOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return eris.Wrap(err, "dataset: write bom")
		}
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Header); err != nil {
		return eris.Wrap(err, "dataset: write csv header")
	}
	if err := cw.WriteAll(d.Rows); err != nil {
		return eris.Wrap(err, "dataset: write csv rows")
	}
	return nil
}

func lookupCharset(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: unsupported charset %q", name)
	}
	return enc, nil
}
