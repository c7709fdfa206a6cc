package csvout

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidslink/pkg/contract"
)

func render(t *testing.T, a *Assembler, recs []contract.OutputRecord) string {
	t.Helper()
	r, err := a.Assemble(context.Background(), recs)
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestAssembleDefault(t *testing.T) {
	a, err := New(nil)
	require.NoError(t, err)
	got := render(t, a, []contract.OutputRecord{
		{GuardianID: "1024", GuardianName: "Maria Souza", ChildName: "Pedro", Method: contract.MethodEmail, GuardianEmail: "maria@x.com"},
		{GuardianID: contract.ManualCheck, GuardianName: "Fulano", ChildName: "Bia", Method: contract.MethodNotFound},
		{GuardianID: "77", GuardianName: "José; Filho", ChildName: "Lia", Method: contract.MethodName},
	})
	want := "\ufeff" +
		"id_responsavel;nome_responsavel;nome_crianca;metodo;email_responsavel;telefone_responsavel\n" +
		"77;\"José; Filho\";Lia;NOME_SEM_ACENTO;;\n" +
		"1024;Maria Souza;Pedro;EMAIL_EXATO;maria@x.com;\n" +
		"MANUAL_CHECK;Fulano;Bia;FALHA;;\n"
	assert.Equal(t, want, got)
}

func TestAssembleOptions(t *testing.T) {
	off := false
	a, err := New(&Options{Separator: ",", BOM: &off, CRLF: true})
	require.NoError(t, err)
	got := render(t, a, []contract.OutputRecord{{GuardianID: "1", Method: contract.MethodPhone, GuardianPhone: "11999998888"}})
	assert.False(t, strings.HasPrefix(got, "\ufeff"))
	assert.Equal(t, "1,,,TELEFONE_EXATO,,11999998888\r\n", strings.SplitAfter(got, "\r\n")[1])

	_, err = New(&Options{Separator: "\""})
	assert.Error(t, err)
}

func TestAssembleDoesNotMutateInput(t *testing.T) {
	a, err := New(nil)
	require.NoError(t, err)
	in := []contract.OutputRecord{{GuardianID: "2"}, {GuardianID: "1"}}
	render(t, a, in)
	assert.Equal(t, "2", in[0].GuardianID)
}

func TestSortOrder(t *testing.T) {
	recs := []contract.OutputRecord{
		{GuardianID: "abc", ChildName: "1"},
		{GuardianID: contract.ManualCheck, ChildName: "2"},
		{GuardianID: "10", ChildName: "3"},
		{GuardianID: "9", ChildName: "4"},
		{GuardianID: "010", ChildName: "5"},
		{GuardianID: contract.ManualCheck, ChildName: "6"},
		{GuardianID: "10", ChildName: "7"},
		{GuardianID: "99999999999999999999999", ChildName: "8"},
	}
	Sort(recs)
	var order []string
	for _, r := range recs {
		order = append(order, r.GuardianID+"/"+r.ChildName)
	}
	assert.Equal(t, []string{
		"9/4", "10/3", "010/5", "10/7", "99999999999999999999999/8",
		"MANUAL_CHECK/2", "MANUAL_CHECK/6", "abc/1",
	}, order)
}

func TestAssembleCancelled(t *testing.T) {
	a, err := New(nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Assemble(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
