package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/tabflowio/tabflow/pkg/table"
)

// ReadCSV reads a delimited text file into a Table. The first record
// defines column names (spec.md §4.4.1 source_csv); delimiter must be a
// single character, defaulting to comma. encoding names a non-UTF-8
// codepage via golang.org/x/text/encoding when not "utf-8"/"".
func ReadCSV(path string, delimiter rune, encoding string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: opening %q: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if dec := decoderFor(encoding); dec != nil {
		r = transform.NewReader(f, dec.NewDecoder())
	}

	reader := csv.NewReader(r)
	if delimiter == 0 {
		delimiter = ','
	}
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingest: parsing csv %q: %w", path, err)
	}
	if len(records) == 0 {
		return table.Empty(nil), nil
	}

	return buildTableFromStrings(records[0], records[1:]), nil
}

// decoderFor maps a handful of common non-UTF-8 encoding names to a
// golang.org/x/text encoding; unknown/empty/"utf-8" names return nil,
// meaning "read as-is" since it is already valid UTF-8.
func decoderFor(name string) encoding.Encoding {
	switch name {
	case "", "utf-8", "UTF-8":
		return nil
	case "gbk", "GBK":
		return simplifiedchinese.GBK
	case "gb18030", "GB18030":
		return simplifiedchinese.GB18030
	case "latin1", "iso-8859-1", "ISO-8859-1":
		return charmap.ISO8859_1
	case "windows-1252", "cp1252":
		return charmap.Windows1252
	default:
		return nil
	}
}
