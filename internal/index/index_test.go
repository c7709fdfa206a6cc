package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidslink/pkg/contract"
)

func TestBuildAllTables(t *testing.T) {
	ix := Build([]contract.MemberRecord{
		{ID: "1", Email: " Ana@X.com ", Phone: "(11) 98765-4321", Name: "Ana Conceição"},
		{ID: "002", Email: "bob@x.com"},
	})

	id, ok := ix.Email("ana@x.com")
	require.True(t, ok)
	assert.Equal(t, "1", id)

	id, ok = ix.Phone("11987654321")
	require.True(t, ok)
	assert.Equal(t, "1", id)

	e, ok := ix.Name("ana conceicao")
	require.True(t, ok)
	assert.Equal(t, Entry{ID: "1", Name: "Ana Conceição"}, e)

	id, ok = ix.Email("bob@x.com")
	require.True(t, ok)
	assert.Equal(t, "002", id, "ids are kept verbatim")

	assert.Equal(t, Stats{Members: 2, Email: 2, Phone: 1, Name: 1}, ix.Stats())
}

func TestBuildSkipsEmptyKeys(t *testing.T) {
	ix := Build([]contract.MemberRecord{
		{ID: "1", Email: "   ", Phone: "n/a", Name: " "},
		{ID: "2"},
	})
	assert.Equal(t, Stats{Members: 2}, ix.Stats())

	_, ok := ix.Email("")
	assert.False(t, ok)
	_, ok = ix.Phone("")
	assert.False(t, ok)
	_, ok = ix.Name("")
	assert.False(t, ok)
}

func TestPhoneMinimumLength(t *testing.T) {
	ix := Build([]contract.MemberRecord{
		{ID: "short", Phone: "123"},
		{ID: "seven", Phone: "1234-567"},
		{ID: "eight", Phone: "9876-5432"},
	})
	_, ok := ix.Phone("123")
	assert.False(t, ok)
	_, ok = ix.Phone("1234567")
	assert.False(t, ok)

	id, ok := ix.Phone("98765432")
	require.True(t, ok)
	assert.Equal(t, "eight", id)
}

func TestDuplicateKeysLastWins(t *testing.T) {
	ix := Build([]contract.MemberRecord{
		{ID: "1", Phone: "11 98765-4321", Name: "Maria Silva", Line: 1},
		{ID: "2", Phone: "11987654321", Name: "MARIA SILVA", Line: 2},
		{ID: "2", Email: "x@y.z", Line: 3},
		{ID: "2", Email: "X@Y.Z", Line: 4},
	})

	id, _ := ix.Phone("11987654321")
	assert.Equal(t, "2", id)
	e, _ := ix.Name("maria silva")
	assert.Equal(t, Entry{ID: "2", Name: "MARIA SILVA"}, e)

	assert.Equal(t, []Collision{
		{Strategy: StrategyPhone, Key: "11987654321", Previous: "1", Current: "2", Line: 2},
		{Strategy: StrategyName, Key: "maria silva", Previous: "1", Current: "2", Line: 2},
	}, ix.Collisions(), "same member repeating a key is not a collision")
}

func TestCollisionsIsACopy(t *testing.T) {
	ix := Build([]contract.MemberRecord{{ID: "1", Name: "a"}, {ID: "2", Name: "A"}})
	c := ix.Collisions()
	require.Len(t, c, 1)
	c[0].Current = "zzz"
	assert.Equal(t, "2", ix.Collisions()[0].Current)
}
