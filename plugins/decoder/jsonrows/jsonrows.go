// Package jsonrows decodes a JSON array of flat objects into a contract.Table.
package jsonrows

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"kidslink/pkg/contract"
)

// Options is currently empty; kept so the registry can decode strictly.
type Options struct{}

// Decoder implements contract.Decoder.
type Decoder struct{}

var _ contract.Decoder = Decoder{}

// New returns a JSON rows decoder.
func New(*Options) Decoder { return Decoder{} }

// Decode expects [{"key": value, ...}, ...]. Keys are lower-cased; the header
// is the sorted union of keys. Numbers keep their literal text so ids are not
// coerced; null becomes "". Nested values are rejected.
func (Decoder) Decode(ctx context.Context, fileID contract.FileID, r io.Reader) (contract.Table, error) {
	if err := ctx.Err(); err != nil {
		return contract.Table{}, err
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var objs []map[string]any
	if err := dec.Decode(&objs); err != nil {
		if err == io.EOF {
			return contract.Table{}, fmt.Errorf("%s: %w", fileID, contract.ErrEmptyInput)
		}
		return contract.Table{}, fmt.Errorf("%s: %v: %w", fileID, err, contract.ErrDecode)
	}
	if len(objs) == 0 {
		return contract.Table{}, fmt.Errorf("%s: %w", fileID, contract.ErrEmptyInput)
	}

	cols := map[string]int{}
	rows := make([]map[string]string, len(objs))
	for i, o := range objs {
		row := make(map[string]string, len(o))
		for k, v := range o {
			key := strings.ToLower(strings.TrimSpace(k))
			if _, dup := row[key]; dup {
				return contract.Table{}, fmt.Errorf("%s: row %d: keys collide as %q: %w", fileID, i+1, key, contract.ErrDecode)
			}
			s, err := text(v)
			if err != nil {
				return contract.Table{}, fmt.Errorf("%s: row %d key %q: %v: %w", fileID, i+1, k, err, contract.ErrDecode)
			}
			row[key] = s
			cols[key] = 0
		}
		rows[i] = row
	}
	header := make([]string, 0, len(cols))
	for k := range cols {
		header = append(header, k)
	}
	sort.Strings(header)

	t := contract.Table{Header: header, Encoding: "utf-8", Source: []contract.FileID{fileID}}
	for _, row := range rows {
		out := make([]string, len(header))
		for i, h := range header {
			out[i] = row[h]
		}
		t.Rows = append(t.Rows, out)
	}
	return t, nil
}

func text(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(x), nil
	case json.Number:
		return x.String(), nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
