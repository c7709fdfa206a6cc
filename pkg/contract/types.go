package contract

// FileID: normalized logical path of an input or output file.
type FileID string

// Table is a decoded tabular input: a lower-cased header and string cells.
// Rows may be shorter than Header; missing cells read as "".
type Table struct {
	Header []string
	Rows   [][]string
	// Encoding names the character decoding that produced the table
	// (e.g. "utf-8", "windows-1252"); empty when not applicable.
	Encoding string
	// Source lists the files or databases that contributed rows, in order.
	Source []FileID
}

// Column returns the index of name in the header, or -1.
func (t Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// MemberRecord is one registry row after schema validation.
// ID is kept verbatim; the contact fields are raw and may be empty.
type MemberRecord struct {
	ID    string
	Email string
	Phone string
	Name  string
	// Line is the 1-based data row number in the source table.
	Line int
}

// RowKind discriminates report rows.
type RowKind int

const (
	KindOther RowKind = iota
	KindGuardian
	KindChild
)

// Row type literals produced by the kids report export.
const (
	LiteralGuardian = "Responsavel"
	LiteralChild    = "Criança"
)

func (k RowKind) String() string {
	switch k {
	case KindGuardian:
		return "guardian"
	case KindChild:
		return "child"
	default:
		return "other"
	}
}

// Guardian carries the raw contact fields used for resolution.
type Guardian struct {
	Name  string
	Email string
	Phone string
}

// ReportRow is one kids report row. Child rows only use Name.
type ReportRow struct {
	Kind  RowKind
	Name  string
	Email string
	Phone string
	Line  int
}

// Guardian returns the contact view of a guardian row.
func (r ReportRow) Guardian() Guardian {
	return Guardian{Name: r.Name, Email: r.Email, Phone: r.Phone}
}

// Method records which strategy resolved a guardian.
type Method int

const (
	MethodNotFound Method = iota
	MethodEmail
	MethodPhone
	MethodName
)

// Output labels for each Method.
const (
	LabelEmail    = "EMAIL_EXATO"
	LabelPhone    = "TELEFONE_EXATO"
	LabelName     = "NOME_SEM_ACENTO"
	LabelNotFound = "FALHA"
)

// String returns the output label of the method.
func (m Method) String() string {
	switch m {
	case MethodEmail:
		return LabelEmail
	case MethodPhone:
		return LabelPhone
	case MethodName:
		return LabelName
	default:
		return LabelNotFound
	}
}

// ManualCheck is the member id written for guardians that could not be resolved.
const ManualCheck = "MANUAL_CHECK"

// Resolution is the outcome of resolving one guardian.
type Resolution struct {
	// MemberID is empty when Method is MethodNotFound.
	MemberID    string
	DisplayName string
	Method      Method
}

// Resolved reports whether a member was found.
func (r Resolution) Resolved() bool { return r.Method != MethodNotFound }

// OutputID returns the member id, or ManualCheck when unresolved.
func (r Resolution) OutputID() string {
	if !r.Resolved() {
		return ManualCheck
	}
	return r.MemberID
}

// OutputRecord links one child to its guardian.
type OutputRecord struct {
	GuardianID    string
	GuardianName  string
	ChildName     string
	Method        Method
	GuardianEmail string
	GuardianPhone string
}

// Tally counts guardians per resolution method.
type Tally struct {
	Email      int `json:"email"`
	Phone      int `json:"phone"`
	Name       int `json:"name"`
	Unresolved int `json:"unresolved"`
}

// Add increments the counter for m.
func (t *Tally) Add(m Method) {
	switch m {
	case MethodEmail:
		t.Email++
	case MethodPhone:
		t.Phone++
	case MethodName:
		t.Name++
	default:
		t.Unresolved++
	}
}

// Merge adds o into t.
func (t *Tally) Merge(o Tally) {
	t.Email += o.Email
	t.Phone += o.Phone
	t.Name += o.Name
	t.Unresolved += o.Unresolved
}

// Total is the number of tallied guardians.
func (t Tally) Total() int { return t.Email + t.Phone + t.Name + t.Unresolved }

// LinkStats counts rows that did not turn into linked children.
type LinkStats struct {
	Guardians           int `json:"guardians"`
	Children            int `json:"children"`
	ManualCheckChildren int `json:"manual_check_children"`
	OrphanChildren      int `json:"orphan_children"`
	DiscardedChildren   int `json:"discarded_children"`
	IgnoredRows         int `json:"ignored_rows"`
}

// Merge adds o into s.
func (s *LinkStats) Merge(o LinkStats) {
	s.Guardians += o.Guardians
	s.Children += o.Children
	s.ManualCheckChildren += o.ManualCheckChildren
	s.OrphanChildren += o.OrphanChildren
	s.DiscardedChildren += o.DiscardedChildren
	s.IgnoredRows += o.IgnoredRows
}

// Block is a contiguous run of report rows cut at guardian boundaries.
// Only the first block of a report may start without a guardian.
type Block struct {
	// Seq is the block order within the report (0..n-1).
	Seq  int
	Rows []ReportRow
}
