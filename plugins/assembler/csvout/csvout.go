// Package csvout orders linked records and serializes them as CSV.
package csvout

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"kidslink/pkg/contract"
)

// Header is the output column order.
var Header = []string{
	"id_responsavel",
	"nome_responsavel",
	"nome_crianca",
	"metodo",
	"email_responsavel",
	"telefone_responsavel",
}

// Options configures the CSV output.
type Options struct {
	// Separator defaults to ";".
	Separator string `json:"separator"`
	// BOM prefixes the output with a UTF-8 byte order mark so spreadsheet
	// tools detect the encoding. Default true.
	BOM *bool `json:"bom,omitempty"`
	// CRLF terminates lines with \r\n instead of \n.
	CRLF bool `json:"crlf"`
}

// Assembler implements contract.Assembler.
type Assembler struct {
	sep  rune
	bom  bool
	crlf bool
}

var _ contract.Assembler = (*Assembler)(nil)

// New validates opts and builds an Assembler.
func New(opts *Options) (*Assembler, error) {
	a := &Assembler{sep: ';', bom: true}
	if opts == nil {
		return a, nil
	}
	if s := opts.Separator; s != "" {
		r, n := utf8.DecodeRuneInString(s)
		if n != len(s) || r == '"' || r == '\r' || r == '\n' {
			return nil, fmt.Errorf("csvout: invalid separator %q", s)
		}
		a.sep = r
	}
	if opts.BOM != nil {
		a.bom = *opts.BOM
	}
	a.crlf = opts.CRLF
	return a, nil
}

// Assemble sorts a copy of records with Sort and renders the CSV.
func (a *Assembler) Assemble(ctx context.Context, records []contract.OutputRecord) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sorted := make([]contract.OutputRecord, len(records))
	copy(sorted, records)
	Sort(sorted)

	var buf bytes.Buffer
	if a.bom {
		buf.WriteString("\ufeff")
	}
	w := csv.NewWriter(&buf)
	w.Comma = a.sep
	w.UseCRLF = a.crlf
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	for _, r := range sorted {
		rec := []string{r.GuardianID, r.GuardianName, r.ChildName, r.Method.String(), r.GuardianEmail, r.GuardianPhone}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return &buf, nil
}

// Sort orders records by guardian id: numeric ids ascending first, then the
// remaining ids lexically (MANUAL_CHECK lands after every numeric id). Equal
// ids keep their report order.
func Sort(records []contract.OutputRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return lessID(records[i].GuardianID, records[j].GuardianID)
	})
}

func lessID(a, b string) bool {
	na, nb := isDigits(a), isDigits(b)
	switch {
	case na && nb:
		ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(ta) != len(tb) {
			return len(ta) < len(tb)
		}
		return ta < tb
	case na != nb:
		return na
	default:
		return a < b
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
