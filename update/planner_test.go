package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanner_NoFixedBlocks_FallsBackToSerial(t *testing.T) {
	p := Planner{HeaderSize: 100}
	plan := p.Plan([]BlockInfo{{Key: "a", Size: 10, Fixed: false}})
	assert.False(t, plan.InPlace)
}

func TestPlanner_KeepsFixedBlockInPlace(t *testing.T) {
	p := Planner{HeaderSize: 50}
	plan := p.Plan([]BlockInfo{{Key: "a", Size: 20, Offset: 50, Fixed: true}})

	assert.True(t, plan.InPlace)
	assert.Len(t, plan.Placements, 1)
	assert.Equal(t, int64(50), plan.Placements[0].Offset)
	assert.False(t, plan.Placements[0].Moved)
}

func TestPlanner_DemotesOverlappingLeadingFixedBlock(t *testing.T) {
	// Header grew to 60 bytes, but the only fixed block starts at 50 —
	// it no longer fits before the new header and must be demoted to
	// free, which empties the fixed list entirely.
	p := Planner{HeaderSize: 60}
	plan := p.Plan([]BlockInfo{{Key: "a", Size: 20, Offset: 50, Fixed: true}})
	assert.False(t, plan.InPlace)
}

func TestPlanner_PlacesFreeBlockInGap(t *testing.T) {
	// Two fixed blocks with a 30-byte gap between them; a 10-byte free
	// block should fit in that gap rather than being appended.
	p := Planner{HeaderSize: 0, BlockSize: 16}
	plan := p.Plan([]BlockInfo{
		{Key: "a", Size: 10, Offset: 0, Fixed: true},
		{Key: "b", Size: 10, Offset: 40, Fixed: true},
		{Key: "c", Size: 10, Fixed: false},
	})

	require := assert.New(t)
	require.True(plan.InPlace)
	require.Len(plan.Placements, 3)

	var placedC int64 = -1
	for _, pl := range plan.Placements {
		if pl.Key == "c" {
			placedC = pl.Offset
		}
	}
	require.Equal(int64(10), placedC)
}

func TestPlanner_AppendsUnfittingFreeBlockPadded(t *testing.T) {
	p := Planner{HeaderSize: 0, BlockSize: 100, PaddingFactor: 1.0}
	plan := p.Plan([]BlockInfo{
		{Key: "a", Size: 10, Offset: 0, Fixed: true},
		{Key: "big", Size: 50, Fixed: false},
	})

	assert.True(t, plan.InPlace)
	var offset int64 = -1
	for _, pl := range plan.Placements {
		if pl.Key == "big" {
			offset = pl.Offset
		}
	}
	assert.Equal(t, int64(10+100), offset) // end of "a" (10) + one full block of padding
}

func TestPlanner_StreamedAlwaysLast(t *testing.T) {
	p := Planner{HeaderSize: 0, BlockSize: 10, PaddingFactor: 1.0, Streamed: &BlockInfo{Key: "s", Size: 5}}
	plan := p.Plan([]BlockInfo{{Key: "a", Size: 10, Offset: 0, Fixed: true}})

	assert.True(t, plan.HasStreamed)
	assert.Equal(t, int64(10+10), plan.StreamedOffset) // end of "a" + one block of padding
	assert.Equal(t, plan.StreamedOffset+5, plan.TailSize)
}
