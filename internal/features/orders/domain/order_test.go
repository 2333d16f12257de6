package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAcceptAllLines verifies every line is confirmed.
func TestAcceptAllLines(t *testing.T) {
	order := Order{
		ID: "O-1",
		Lines: []OrderLine{
			{LineID: "O-1-1", SKU: "A", Quantity: 1},
			{LineID: "O-1-2", SKU: "B", Quantity: 3},
		},
	}

	lines := order.AcceptAllLines()

	assert.Equal(t, []AcceptanceLine{
		{LineID: "O-1-1", Accepted: true},
		{LineID: "O-1-2", Accepted: true},
	}, lines)
}

// TestMergeByID verifies de-duplicated working-set merging.
func TestMergeByID(t *testing.T) {
	existing := []Order{{ID: "A"}, {ID: "B"}}
	incoming := []Order{{ID: "B"}, {ID: "C"}, {ID: "C"}}

	merged, added := MergeByID(existing, incoming)

	assert.Equal(t, 1, added)
	ids := make([]string, 0, len(merged))
	for _, o := range merged {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids)
}

// TestMergeByID_EmptyExisting verifies merging into an empty set.
func TestMergeByID_EmptyExisting(t *testing.T) {
	merged, added := MergeByID(nil, []Order{{ID: "X"}})

	assert.Equal(t, 1, added)
	assert.Len(t, merged, 1)
}
