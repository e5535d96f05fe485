package statement

import (
	"testing"

	"github.com/johnstarich/banklink/plaindb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAdd(t *testing.T) {
	db := plaindb.NewMockDB(plaindb.MockConfig{})
	store, err := NewStore(db)
	require.NoError(t, err)

	first := []Line{
		{UniqueImportID: "a", Date: date(t, "2024-01-02"), Amount: decimal.New(1, 0)},
		{UniqueImportID: "b", Date: date(t, "2024-01-01"), Amount: decimal.New(2, 0)},
		{Date: date(t, "2024-01-03")},
	}
	added, err := store.Add("journal", first)
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	added, err = store.Add("journal", []Line{
		{UniqueImportID: "a", Date: date(t, "2024-01-02")},
		{UniqueImportID: "c", Date: date(t, "2024-01-04")},
		{UniqueImportID: "c", Date: date(t, "2024-01-04")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	lines, err := store.Lines("journal")
	require.NoError(t, err)
	var ids, importIDs []string
	for _, line := range lines {
		ids = append(ids, line.ID)
		importIDs = append(importIDs, line.UniqueImportID)
		assert.Equal(t, "journal", line.JournalID)
	}
	assert.Equal(t, []string{"journal-2", "journal-1", "journal-3", "journal-4"}, ids)
	assert.Equal(t, []string{"b", "a", "", "c"}, importIDs)

	line, found, err := store.Line("journal", "journal-4")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "c", line.UniqueImportID)

	_, found, err = store.Line("other", "journal-4")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreAddRequiresJournal(t *testing.T) {
	store, err := NewStore(plaindb.NewMockDB(plaindb.MockConfig{}))
	require.NoError(t, err)
	_, err = store.Add("", []Line{{}})
	assert.EqualError(t, err, "Journal ID is required")
}
