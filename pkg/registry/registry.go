// Package registry maps component names to factories. Options arrive as raw
// JSON and are decoded strictly: unknown fields are rejected.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"kidslink/pkg/contract"
	acsv "kidslink/plugins/assembler/csvout"
	bgrd "kidslink/plugins/batcher/guardian"
	dcsv "kidslink/plugins/decoder/csvtable"
	djson "kidslink/plugins/decoder/jsonrows"
	rfs "kidslink/plugins/reader/filesystem"
	ssql "kidslink/plugins/source/sqlite"
	stab "kidslink/plugins/source/tabular"
	wfs "kidslink/plugins/writer/filesystem"
)

func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type (
	NewReader    func(raw json.RawMessage) (contract.Reader, error)
	NewDecoder   func(raw json.RawMessage) (contract.Decoder, error)
	NewSource    func(raw json.RawMessage) (contract.Source, error)
	NewBatcher   func(raw json.RawMessage) (contract.Batcher, error)
	NewAssembler func(raw json.RawMessage) (contract.Assembler, error)
	NewWriter    func(raw json.RawMessage) (contract.Writer, error)
)

// Reader factories.
var Reader = map[string]NewReader{
	// fs: files, directories, STDIN
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Decoder factories.
var Decoder = map[string]NewDecoder{
	"csv": func(raw json.RawMessage) (contract.Decoder, error) {
		var opts dcsv.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return dcsv.New(&opts)
	},
	"json": func(raw json.RawMessage) (contract.Decoder, error) {
		var opts djson.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return djson.New(&opts), nil
	},
}

// FileSourceOptions configures the "file" source: a Reader plus decoders
// chosen by file extension (.csv, .json), falling back to Decoder.
type FileSourceOptions struct {
	Reader  json.RawMessage `json:"reader"`
	Decoder string          `json:"decoder"`
	CSV     json.RawMessage `json:"csv"`
	JSON    json.RawMessage `json:"json"`
}

// Source factories.
var Source = map[string]NewSource{
	"file": func(raw json.RawMessage) (contract.Source, error) {
		var opts FileSourceOptions
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		r, err := Reader["fs"](opts.Reader)
		if err != nil {
			return nil, fmt.Errorf("reader: %w", err)
		}
		csvDec, err := Decoder["csv"](opts.CSV)
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		jsonDec, err := Decoder["json"](opts.JSON)
		if err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
		byExt := map[string]contract.Decoder{".csv": csvDec, ".json": jsonDec}
		def := csvDec
		switch opts.Decoder {
		case "", "csv":
		case "json":
			def = jsonDec
		default:
			return nil, fmt.Errorf("file source: decoder %q not registered", opts.Decoder)
		}
		return stab.New(r, def, byExt), nil
	},
	"sqlite": func(raw json.RawMessage) (contract.Source, error) {
		var opts ssql.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ssql.New(&opts)
	},
}

// Batcher factories.
var Batcher = map[string]NewBatcher{
	// guardian: cut at guardian rows, pack up to BlockLimit.MaxRows
	"guardian": func(raw json.RawMessage) (contract.Batcher, error) {
		var opts bgrd.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return bgrd.New(&opts), nil
	},
}

// Assembler factories.
var Assembler = map[string]NewAssembler{
	"csv": func(raw json.RawMessage) (contract.Assembler, error) {
		var opts acsv.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return acsv.New(&opts)
	},
}

// Writer factories.
var Writer = map[string]NewWriter{
	// fs: atomic replace by default
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts), nil
	},
}
