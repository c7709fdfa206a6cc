// Package csvtable decodes delimited text exports (spreadsheet and report
// tool CSVs) into contract.Table.
package csvtable

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"kidslink/pkg/contract"
)

// Options configures the decoder.
type Options struct {
	// Encodings are tried in order; the first one that decodes the whole
	// input without replacement characters wins.
	// Default: utf-8, windows-1252, iso-8859-1.
	Encodings []string `json:"encodings"`
	// Separator forces the field separator. Empty sniffs the first line:
	// ';' when present, ',' otherwise.
	Separator string `json:"separator"`
	// RepairMojibake re-reads cells that were UTF-8 decoded as windows-1252
	// somewhere upstream ("JoÃ£o" -> "João"). Default true.
	RepairMojibake *bool `json:"repair_mojibake,omitempty"`
}

// DefaultEncodings is the candidate list used when Options.Encodings is empty.
var DefaultEncodings = []string{"utf-8", "windows-1252", "iso-8859-1"}

type candidate struct {
	name string
	enc  encoding.Encoding // nil means utf-8
}

// Decoder implements contract.Decoder.
type Decoder struct {
	cands  []candidate
	sep    rune
	repair bool
}

var _ contract.Decoder = (*Decoder)(nil)

// New validates opts and builds a Decoder.
func New(opts *Options) (*Decoder, error) {
	d := &Decoder{repair: true}
	names := DefaultEncodings
	if opts != nil {
		if len(opts.Encodings) > 0 {
			names = opts.Encodings
		}
		if opts.RepairMojibake != nil {
			d.repair = *opts.RepairMojibake
		}
		if s := opts.Separator; s != "" {
			r, n := utf8.DecodeRuneInString(s)
			if n != len(s) || r == '"' || r == '\r' || r == '\n' {
				return nil, fmt.Errorf("csvtable: invalid separator %q", s)
			}
			d.sep = r
		}
	}
	for _, n := range names {
		c, err := lookupEncoding(n)
		if err != nil {
			return nil, err
		}
		d.cands = append(d.cands, c)
	}
	return d, nil
}

func lookupEncoding(name string) (candidate, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return candidate{name: "utf-8"}, nil
	case "windows-1252", "cp1252":
		return candidate{name: "windows-1252", enc: charmap.Windows1252}, nil
	case "iso-8859-1", "latin1", "latin-1":
		return candidate{name: "iso-8859-1", enc: charmap.ISO8859_1}, nil
	case "iso-8859-15", "latin9":
		return candidate{name: "iso-8859-15", enc: charmap.ISO8859_15}, nil
	default:
		return candidate{}, fmt.Errorf("csvtable: unsupported encoding %q", name)
	}
}

// Decode reads the whole input and returns the table. An input without a
// header line yields contract.ErrEmptyInput.
func (d *Decoder) Decode(ctx context.Context, fileID contract.FileID, r io.Reader) (contract.Table, error) {
	if err := ctx.Err(); err != nil {
		return contract.Table{}, err
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return contract.Table{}, fmt.Errorf("read %s: %w", fileID, err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	text, encName, err := d.decodeText(raw)
	if err != nil {
		return contract.Table{}, fmt.Errorf("%s: %w", fileID, err)
	}
	if strings.TrimSpace(text) == "" {
		return contract.Table{}, fmt.Errorf("%s: %w", fileID, contract.ErrEmptyInput)
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = d.separator(text)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return contract.Table{}, fmt.Errorf("%s: %w", fileID, contract.ErrEmptyInput)
		}
		return contract.Table{}, fmt.Errorf("%s header: %v: %w", fileID, err, contract.ErrDecode)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	t := contract.Table{Header: header, Encoding: encName, Source: []contract.FileID{fileID}}
	for n := 0; ; n++ {
		if n&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return contract.Table{}, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return contract.Table{}, fmt.Errorf("%s: %v: %w", fileID, err, contract.ErrDecode)
		}
		for i, c := range rec {
			rec[i] = d.clean(c)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// decodeText returns the input as UTF-8 using the first candidate that
// accepts it.
func (d *Decoder) decodeText(raw []byte) (string, string, error) {
	for _, c := range d.cands {
		if c.enc == nil {
			if utf8.Valid(raw) {
				return string(raw), c.name, nil
			}
			continue
		}
		out, err := c.enc.NewDecoder().Bytes(raw)
		if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
			continue
		}
		return string(out), c.name, nil
	}
	names := make([]string, len(d.cands))
	for i, c := range d.cands {
		names[i] = c.name
	}
	return "", "", fmt.Errorf("no candidate encoding (%s) accepted the input: %w", strings.Join(names, ", "), contract.ErrDecode)
}

func (d *Decoder) separator(text string) rune {
	if d.sep != 0 {
		return d.sep
	}
	first := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		first = text[:i]
	}
	if strings.ContainsRune(first, ';') {
		return ';'
	}
	return ','
}

// integral float values produced by spreadsheet exports ("11987654321.0").
var floatInt = regexp.MustCompile(`^-?\d+\.0$`)

func (d *Decoder) clean(c string) string {
	c = strings.TrimSpace(c)
	if c == "" || strings.EqualFold(c, "nan") {
		return ""
	}
	if floatInt.MatchString(c) {
		return strings.TrimSuffix(c, ".0")
	}
	if d.repair {
		c = Repair(c)
	}
	return c
}

// Repair undoes one round of UTF-8 bytes being read as windows-1252.
// Values that do not round-trip to valid UTF-8 are returned unchanged.
func Repair(s string) string {
	if isASCII(s) {
		return s
	}
	b, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil || b == s || !utf8.ValidString(b) {
		return s
	}
	return b
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
