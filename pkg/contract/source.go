package contract

import "context"

// Source loads a complete table from a reference (path, directory, database).
// A Source is consumed once per run; the whole table is materialized because
// resolution may need any registry entry.
type Source interface {
	Load(ctx context.Context, ref string) (Table, error)
}
