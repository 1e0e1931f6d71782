package resource

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_InsertLookup(t *testing.T) {
	tbl := NewTable()

	id := tbl.Insert("handle-a")
	got, ok := tbl.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, "handle-a", got)
}

func TestTable_LookupMissing(t *testing.T) {
	tbl := NewTable()

	_, ok := tbl.Lookup(ID{})
	assert.False(t, ok)
}

func TestTable_DistinctIdentifiers(t *testing.T) {
	tbl := NewTable()

	a := tbl.Insert("one")
	b := tbl.Insert("two")
	assert.NotEqual(t, a, b)
}

func TestTable_Len(t *testing.T) {
	tbl := NewTable()
	assert.Equal(t, 0, tbl.Len())

	tbl.Insert("x")
	tbl.Insert("y")
	assert.Equal(t, 2, tbl.Len())
}

func TestTable_ConcurrentInsert(t *testing.T) {
	tbl := NewTable()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tbl.Insert(n)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, tbl.Len())
}

func TestID_BytesRoundTrip(t *testing.T) {
	tbl := NewTable()
	id := tbl.Insert("round-trip")

	back := IDFromBytes(id.Bytes())
	assert.Equal(t, id, back)
}

func TestID_String(t *testing.T) {
	tbl := NewTable()
	id := tbl.Insert("v")

	assert.Len(t, id.String(), 36) // canonical UUID form, hyphenated
}
