package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"karriere-harvester/internal/models"
)

func rec(id, name string) models.JobRecord {
	return models.JobRecord{ID: id, Name: name}
}

func TestAccumulatorPutOverwritesAndOrders(t *testing.T) {
	a := NewAccumulator()
	a.Put(2, rec("c", "C"))
	a.Put(0, rec("a", "A"))
	a.Put(0, rec("a", "A2"))
	a.Put(5, rec("d", "D"))

	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 6, a.End())
	got := a.Records()
	assert.Equal(t, []models.JobRecord{rec("a", "A2"), rec("c", "C"), rec("d", "D")}, got)

	got[0].Name = "mutated"
	assert.Equal(t, "A2", a.Records()[0].Name)
}

func TestAccumulatorDedupKeepsLastOccurrence(t *testing.T) {
	a := NewAccumulator()
	a.Put(0, rec("1", "first url"))
	a.Put(1, rec("2", "x"))
	a.Put(2, rec("3", "y"))
	a.Put(3, rec("1", "second url"))
	a.Put(4, rec("4", "z"))

	assert.Equal(t, 1, a.Dedup())
	assert.Equal(t, []models.JobRecord{
		rec("2", "x"), rec("3", "y"), rec("1", "second url"), rec("4", "z"),
	}, a.Records())
	assert.Equal(t, 0, a.Dedup())
}

func TestAccumulatorReset(t *testing.T) {
	a := NewAccumulator()
	a.Put(3, rec("1", "a"))
	a.Reset()
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 0, a.End())
	assert.Empty(t, a.Records())
}
