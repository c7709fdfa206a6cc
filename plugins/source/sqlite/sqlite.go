// Package sqlite loads the member registry from an SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"kidslink/pkg/contract"
)

// DefaultTable is the registry table queried when no query is configured.
const DefaultTable = "membro_rows"

// Options configures the SQLite source.
type Options struct {
	// Table is read with SELECT *. Ignored when Query is set.
	Table string `json:"table"`
	// Query is a custom read-only statement; its column names form the header.
	Query string `json:"query"`
}

// Source implements contract.Source for SQLite databases.
type Source struct {
	query string
}

var _ contract.Source = (*Source)(nil)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// New validates opts and builds a Source.
func New(opts *Options) (*Source, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if q := strings.TrimSpace(o.Query); q != "" {
		return &Source{query: q}, nil
	}
	table := o.Table
	if table == "" {
		table = DefaultTable
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("sqlite: invalid table name %q", table)
	}
	return &Source{query: `SELECT * FROM "` + table + `"`}, nil
}

// Load opens the database at ref read-only and returns the query result.
// Values are rendered as text; integers keep their exact digits.
func (s *Source) Load(ctx context.Context, ref string) (contract.Table, error) {
	if _, err := os.Stat(ref); err != nil {
		return contract.Table{}, fmt.Errorf("sqlite source: %w", err)
	}
	db, err := sql.Open("sqlite3", dsn(ref))
	if err != nil {
		return contract.Table{}, fmt.Errorf("sqlite open %s: %w", ref, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, s.query)
	if err != nil {
		return contract.Table{}, fmt.Errorf("sqlite query %s: %w", ref, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return contract.Table{}, err
	}
	t := contract.Table{Encoding: "utf-8", Source: []contract.FileID{contract.NormalizeFileID(ref)}}
	for _, c := range cols {
		t.Header = append(t.Header, strings.ToLower(strings.TrimSpace(c)))
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return contract.Table{}, fmt.Errorf("sqlite scan %s: %w", ref, err)
		}
		rec := make([]string, len(cols))
		for i, v := range vals {
			rec[i] = render(v)
		}
		t.Rows = append(t.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return contract.Table{}, fmt.Errorf("sqlite rows %s: %w", ref, err)
	}
	return t, nil
}

// uriEscaper covers the characters SQLite gives meaning to inside a file: URI
// path: % starts an escape, ? the parameters and # the fragment.
var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// dsn builds a read-only file: URI for the database at path.
func dsn(path string) string {
	return "file:" + uriEscaper.Replace(filepath.ToSlash(path)) + "?mode=ro"
}

func render(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []byte:
		return strings.TrimSpace(string(x))
	case string:
		return strings.TrimSpace(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
