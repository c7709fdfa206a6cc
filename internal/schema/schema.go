// Package schema validates decoded tables once and turns them into the
// explicit record shapes used by the linkage core.
package schema

import (
	"fmt"
	"strings"

	"kidslink/pkg/contract"
)

// MemberColumns lists candidate header names per registry field.
// The first candidate present in the header is used.
type MemberColumns struct {
	ID    []string `koanf:"id" yaml:"id"`
	Email []string `koanf:"email" yaml:"email"`
	Phone []string `koanf:"phone" yaml:"phone"`
	Name  []string `koanf:"name" yaml:"name"`
}

// DefaultMemberColumns matches the registry export (membro_rows).
func DefaultMemberColumns() MemberColumns {
	return MemberColumns{
		ID:    []string{"id_membro", "id"},
		Email: []string{"email"},
		Phone: []string{"telefone", "celular", "phone"},
		Name:  []string{"nome", "name"},
	}
}

// ReportColumns names the kids report columns.
type ReportColumns struct {
	Type  string `koanf:"type" yaml:"type"`
	Name  string `koanf:"name" yaml:"name"`
	Email string `koanf:"email" yaml:"email"`
	Phone string `koanf:"phone" yaml:"phone"`
}

// DefaultReportColumns matches the family report export, whose columns are
// named after the report designer's text boxes.
func DefaultReportColumns() ReportColumns {
	return ReportColumns{Type: "text15", Name: "text7", Email: "text11", Phone: "text13"}
}

// Skipped is a registry row left out of the index.
type Skipped struct {
	Line   int
	Reason string
}

// Members converts a registry table. A missing id column is fatal; a row with
// an empty id is skipped, or fatal when strict is set.
func Members(t contract.Table, cols MemberColumns, strict bool) ([]contract.MemberRecord, []Skipped, error) {
	idCol := pick(t, cols.ID)
	if idCol < 0 {
		return nil, nil, fmt.Errorf("%w: registry id (tried %s)", contract.ErrMissingColumn, strings.Join(cols.ID, ", "))
	}
	emailCol := pick(t, cols.Email)
	phoneCol := pick(t, cols.Phone)
	nameCol := pick(t, cols.Name)

	members := make([]contract.MemberRecord, 0, len(t.Rows))
	var skipped []Skipped
	for i, row := range t.Rows {
		line := i + 1
		id := cell(row, idCol)
		if id == "" {
			if strict {
				return nil, nil, fmt.Errorf("%w: registry row %d", contract.ErrMissingID, line)
			}
			skipped = append(skipped, Skipped{Line: line, Reason: "empty id"})
			continue
		}
		members = append(members, contract.MemberRecord{
			ID:    id,
			Email: cell(row, emailCol),
			Phone: cell(row, phoneCol),
			Name:  cell(row, nameCol),
			Line:  line,
		})
	}
	return members, skipped, nil
}

// Report converts the kids report table. Only the type column is required;
// other missing columns read as empty strings.
func Report(t contract.Table, cols ReportColumns) ([]contract.ReportRow, error) {
	typeCol := column(t, cols.Type)
	if typeCol < 0 {
		return nil, fmt.Errorf("%w: report row type %q", contract.ErrMissingColumn, cols.Type)
	}
	nameCol := column(t, cols.Name)
	emailCol := column(t, cols.Email)
	phoneCol := column(t, cols.Phone)

	rows := make([]contract.ReportRow, 0, len(t.Rows))
	for i, row := range t.Rows {
		r := contract.ReportRow{Kind: Kind(cell(row, typeCol)), Name: cell(row, nameCol), Line: i + 1}
		if r.Kind == contract.KindGuardian {
			r.Email = cell(row, emailCol)
			r.Phone = cell(row, phoneCol)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// Kind maps a row type value to a RowKind. The comparison is exact and
// case-sensitive after trimming surrounding whitespace.
func Kind(v string) contract.RowKind {
	switch strings.TrimSpace(v) {
	case contract.LiteralGuardian:
		return contract.KindGuardian
	case contract.LiteralChild:
		return contract.KindChild
	default:
		return contract.KindOther
	}
}

func pick(t contract.Table, candidates []string) int {
	for _, c := range candidates {
		if i := column(t, c); i >= 0 {
			return i
		}
	}
	return -1
}

func column(t contract.Table, name string) int {
	k := strings.ToLower(strings.TrimSpace(name))
	if k == "" {
		return -1
	}
	return t.Column(k)
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
