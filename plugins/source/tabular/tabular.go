// Package tabular loads a table from files by combining a Reader and Decoders.
package tabular

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"kidslink/pkg/contract"
)

// Source implements contract.Source over a Reader. Each file is decoded by the
// decoder registered for its extension, or the default decoder.
type Source struct {
	reader contract.Reader
	def    contract.Decoder
	byExt  map[string]contract.Decoder
}

var _ contract.Source = (*Source)(nil)

// New builds a Source. byExt keys are extensions such as ".json"; may be nil.
func New(r contract.Reader, def contract.Decoder, byExt map[string]contract.Decoder) *Source {
	m := make(map[string]contract.Decoder, len(byExt))
	for ext, d := range byExt {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m[ext] = d
	}
	return &Source{reader: r, def: def, byExt: m}
}

// Load reads every file under ref (a file, a directory or "-") and
// concatenates their rows in reader order. The header is the union of the
// file headers in first-seen order.
func (s *Source) Load(ctx context.Context, ref string) (contract.Table, error) {
	var parts []contract.Table
	err := s.reader.Iterate(ctx, []string{ref}, func(id contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		t, err := s.decoderFor(id).Decode(ctx, id, rc)
		if err != nil {
			return err
		}
		parts = append(parts, t)
		return nil
	})
	if err != nil {
		return contract.Table{}, err
	}
	if len(parts) == 0 {
		return contract.Table{}, fmt.Errorf("%s: no input files: %w", ref, contract.ErrEmptyInput)
	}
	return Merge(parts), nil
}

func (s *Source) decoderFor(id contract.FileID) contract.Decoder {
	if d, ok := s.byExt[strings.ToLower(path.Ext(string(id)))]; ok {
		return d
	}
	return s.def
}

// Merge concatenates tables, remapping each row onto the union header.
func Merge(parts []contract.Table) contract.Table {
	if len(parts) == 1 {
		return parts[0]
	}
	var out contract.Table
	pos := map[string]int{}
	var encs []string
	for _, p := range parts {
		for _, h := range p.Header {
			if _, ok := pos[h]; !ok {
				pos[h] = len(out.Header)
				out.Header = append(out.Header, h)
			}
		}
		out.Source = append(out.Source, p.Source...)
		if p.Encoding != "" && !contains(encs, p.Encoding) {
			encs = append(encs, p.Encoding)
		}
	}
	for _, p := range parts {
		for _, row := range p.Rows {
			dst := make([]string, len(out.Header))
			for i, v := range row {
				if i < len(p.Header) {
					dst[pos[p.Header[i]]] = v
				}
			}
			out.Rows = append(out.Rows, dst)
		}
	}
	out.Encoding = strings.Join(encs, ",")
	return out
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
