package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidslink/pkg/contract"
)

func TestMembers(t *testing.T) {
	tb := contract.Table{
		Header: []string{"id", "nome", "email", "celular"},
		Rows: [][]string{
			{"0042", " Ana ", "ana@x.com", "11 9999-0000"},
			{"", "Sem Id", "semid@x.com"},
			{"7", "Bob"},
		},
	}
	members, skipped, err := Members(tb, DefaultMemberColumns(), false)
	require.NoError(t, err)
	assert.Equal(t, []contract.MemberRecord{
		{ID: "0042", Name: "Ana", Email: "ana@x.com", Phone: "11 9999-0000", Line: 1},
		{ID: "7", Name: "Bob", Line: 3},
	}, members)
	assert.Equal(t, []Skipped{{Line: 2, Reason: "empty id"}}, skipped)
}

func TestMembersFirstCandidateWins(t *testing.T) {
	tb := contract.Table{Header: []string{"id", "id_membro"}, Rows: [][]string{{"row", "member"}}}
	members, _, err := Members(tb, DefaultMemberColumns(), false)
	require.NoError(t, err)
	assert.Equal(t, "member", members[0].ID)
}

func TestMembersMissingIDColumn(t *testing.T) {
	tb := contract.Table{Header: []string{"nome", "email"}}
	_, _, err := Members(tb, DefaultMemberColumns(), false)
	assert.ErrorIs(t, err, contract.ErrMissingColumn)
}

func TestMembersStrictRejectsEmptyID(t *testing.T) {
	tb := contract.Table{Header: []string{"id_membro"}, Rows: [][]string{{"1"}, {"  "}}}
	_, _, err := Members(tb, DefaultMemberColumns(), true)
	assert.ErrorIs(t, err, contract.ErrMissingID)
}

func TestMembersOptionalColumnsAbsent(t *testing.T) {
	tb := contract.Table{Header: []string{"id_membro"}, Rows: [][]string{{"1"}}}
	members, _, err := Members(tb, MemberColumns{ID: []string{"ID_MEMBRO "}}, false)
	require.NoError(t, err)
	assert.Equal(t, []contract.MemberRecord{{ID: "1", Line: 1}}, members)
}

func TestReport(t *testing.T) {
	tb := contract.Table{
		Header: []string{"text7", "text11", "text13", "text15"},
		Rows: [][]string{
			{"Ana", "ana@x.com", "119", "Responsavel"},
			{"Pedro", "pedro@x.com", "118", "Criança"},
			{"Total", "", "", "Rodapé"},
			{"Lia"},
			{"Bob", "", "", " Responsavel "},
		},
	}
	rows, err := Report(tb, DefaultReportColumns())
	require.NoError(t, err)
	assert.Equal(t, []contract.ReportRow{
		{Kind: contract.KindGuardian, Name: "Ana", Email: "ana@x.com", Phone: "119", Line: 1},
		{Kind: contract.KindChild, Name: "Pedro", Line: 2},
		{Kind: contract.KindOther, Name: "Total", Line: 3},
		{Kind: contract.KindOther, Name: "Lia", Line: 4},
		{Kind: contract.KindGuardian, Name: "Bob", Line: 5},
	}, rows)
}

func TestReportMissingColumns(t *testing.T) {
	_, err := Report(contract.Table{Header: []string{"text7"}}, DefaultReportColumns())
	assert.ErrorIs(t, err, contract.ErrMissingColumn)

	rows, err := Report(contract.Table{
		Header: []string{"text15", ""},
		Rows:   [][]string{{"Responsavel", "x"}},
	}, ReportColumns{Type: "text15"})
	require.NoError(t, err)
	assert.Equal(t, contract.ReportRow{Kind: contract.KindGuardian, Line: 1}, rows[0])
}

func TestKindIsCaseSensitive(t *testing.T) {
	assert.Equal(t, contract.KindGuardian, Kind("Responsavel"))
	assert.Equal(t, contract.KindChild, Kind("Criança"))
	assert.Equal(t, contract.KindOther, Kind("responsavel"))
	assert.Equal(t, contract.KindOther, Kind("Responsável"))
	assert.Equal(t, contract.KindOther, Kind("CRIANÇA"))
	assert.Equal(t, contract.KindOther, Kind(""))
}
