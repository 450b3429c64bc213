package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"epitrack/internal/core/id"
)

func TestFixedDirection(t *testing.T) {
	credit := []EntryKind{KindIntake, KindTransferIn, KindReturn, KindReversalCredit}
	for _, k := range credit {
		dir, ok := k.FixedDirection()
		assert.True(t, ok, "%s should have a fixed direction", k)
		assert.Equal(t, DirectionCredit, dir)
	}

	debit := []EntryKind{KindIssue, KindTransferOut, KindDisposal, KindReversalDebit}
	for _, k := range debit {
		dir, ok := k.FixedDirection()
		assert.True(t, ok, "%s should have a fixed direction", k)
		assert.Equal(t, DirectionDebit, dir)
	}

	// Adjustments go whichever way the counted delta says.
	_, ok := KindAdjustment.FixedDirection()
	assert.False(t, ok)
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, DirectionDebit, DirectionCredit.Opposite())
	assert.Equal(t, DirectionCredit, DirectionDebit.Opposite())
}

func TestSignedQuantity(t *testing.T) {
	e := Entry{Direction: DirectionCredit, Quantity: 4}
	assert.EqualValues(t, 4, e.SignedQuantity())

	e.Direction = DirectionDebit
	assert.EqualValues(t, -4, e.SignedQuantity())
}

func TestBucketKeyOrdering(t *testing.T) {
	a := BucketKey{LocationID: id.MustParse("018f0000-0000-7000-8000-000000000001"), Status: StatusAvailable}
	b := BucketKey{LocationID: id.MustParse("018f0000-0000-7000-8000-000000000002"), Status: StatusAvailable}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))

	// Same location and item type, different condition buckets.
	avail := BucketKey{LocationID: a.LocationID, Status: StatusAvailable}
	quarantine := BucketKey{LocationID: a.LocationID, Status: StatusAwaitingInspection}
	assert.True(t, avail.Less(quarantine))
}
