package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"epitrack/internal/core/id"
	"epitrack/internal/domain/ledger"
)

func unitIn(status UnitStatus, condition *ReturnCondition) Unit {
	return Unit{ID: id.New(), Quantity: 1, Status: status, ReturnCondition: condition}
}

func condPtr(c ReturnCondition) *ReturnCondition { return &c }

func TestSummarize(t *testing.T) {
	tests := []struct {
		name  string
		units []Unit
		want  ReturnSummary
	}{
		{
			name:  "all with worker",
			units: []Unit{unitIn(UnitWithWorker, nil), unitIn(UnitWithWorker, nil)},
			want:  ReturnSummary{WithWorker: 2},
		},
		{
			name: "partially returned",
			units: []Unit{
				unitIn(UnitWithWorker, nil),
				unitIn(UnitReturned, condPtr(ConditionGood)),
			},
			want: ReturnSummary{WithWorker: 1, Returned: 1, PartiallyReturned: true},
		},
		{
			name: "fully returned with loss",
			units: []Unit{
				unitIn(UnitReturned, condPtr(ConditionGood)),
				unitIn(UnitReturned, condPtr(ConditionLost)),
			},
			want: ReturnSummary{Returned: 2, Lost: 1, FullyReturned: true},
		},
		{
			name: "no units",
			want: ReturnSummary{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := &Delivery{ID: id.New(), Units: tc.units}
			got := d.Summarize()
			tc.want.DeliveryID = d.ID
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSourceBucket(t *testing.T) {
	u := Unit{
		ItemTypeID:       id.New(),
		SourceLocationID: id.New(),
	}
	bucket := u.SourceBucket()
	assert.Equal(t, u.SourceLocationID, bucket.LocationID)
	assert.Equal(t, u.ItemTypeID, bucket.ItemTypeID)
	assert.Equal(t, ledger.StatusAvailable, bucket.Status)
}

func TestValidReturnCondition(t *testing.T) {
	assert.True(t, ValidReturnCondition(ConditionGood))
	assert.True(t, ValidReturnCondition(ConditionDamaged))
	assert.True(t, ValidReturnCondition(ConditionLost))
	assert.False(t, ValidReturnCondition("PRISTINE"))
	assert.False(t, ValidReturnCondition(""))
}
