package nand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLU(numDies int) (*LogicalUnit, []*Die) {
	cfg := testCfg()
	params := testParams()
	dies := make([]*Die, numDies)
	for i := range dies {
		dies[i] = NewDie(uint32(i), cfg, params, true)
	}
	return NewLogicalUnit(0, dies, cfg.ClockPeriodPs, 4), dies
}

func runUntilIdle(t *testing.T, lu *LogicalUnit, dieID uint32, maxSteps int) {
	t.Helper()
	for i := 0; i < maxSteps; i++ {
		if lu.QueueDepth(dieID) == 0 {
			return
		}
		lu.Update(1 << 40)
	}
	t.Fatalf("die %d did not drain its queue within %d steps", dieID, maxSteps)
}

func TestLogicalUnitSingleReadCompletes(t *testing.T) {
	lu, dies := newTestLU(1)
	cfg := testCfg()

	var completions int
	var gotHostID uint32
	lu.SetCompletionCallback(func(hostTransID uint32, arrival, current uint64) {
		completions++
		gotHostID = hostTransID
	})

	addr := ComposeAddress(cfg, 0, 0, 0, 1)
	data := make([]byte, cfg.PageSize)
	data[0] = 0x42
	_ = dies[0].planes[0].Write(0, 0, 1, data)

	out := make([]byte, cfg.PageSize)
	pkt := &StagePacket{StageID: 7, Command: CmdReadPage, Row: uint32(addr), Col: 0, RandomBytes: cfg.PageSize, Data: out, IsLastOfTransaction: true}
	require.True(t, lu.Issue(0, pkt).OK())

	runUntilIdle(t, lu, 0, 20)

	assert.Equal(t, 1, completions)
	assert.Equal(t, uint32(7), gotHostID)
	assert.Equal(t, byte(0x42), out[0])
}

func TestLogicalUnitTwoDiesInterleaved(t *testing.T) {
	lu, _ := newTestLU(2)
	cfg := testCfg()

	var completions int
	lu.SetCompletionCallback(func(hostTransID uint32, arrival, current uint64) {
		completions++
	})

	addr0 := ComposeAddress(cfg, 0, 0, 0, 0)
	addr1 := ComposeAddress(cfg, 1, 0, 0, 0)
	pkt0 := &StagePacket{StageID: 1, Command: CmdProgPage, Row: uint32(addr0), Col: 0, RandomBytes: cfg.PageSize, Data: make([]byte, cfg.PageSize), IsLastOfTransaction: true}
	pkt1 := &StagePacket{StageID: 2, Command: CmdProgPage, Row: uint32(addr1), Col: 0, RandomBytes: cfg.PageSize, Data: make([]byte, cfg.PageSize), IsLastOfTransaction: true}

	require.True(t, lu.Issue(0, pkt0).OK())
	require.True(t, lu.Issue(1, pkt1).OK())

	for i := 0; i < 40 && (lu.QueueDepth(0) > 0 || lu.QueueDepth(1) > 0); i++ {
		lu.Update(1 << 40)
	}

	assert.Equal(t, 0, lu.QueueDepth(0))
	assert.Equal(t, 0, lu.QueueDepth(1))
	assert.Equal(t, 2, completions)
}

func TestLogicalUnitResetDrainsQueue(t *testing.T) {
	lu, _ := newTestLU(1)
	cfg := testCfg()
	addr := ComposeAddress(cfg, 0, 0, 0, 0)

	require.True(t, lu.Issue(0, &StagePacket{Command: CmdProgPage, Row: uint32(addr), Col: 0, RandomBytes: cfg.PageSize, Data: make([]byte, cfg.PageSize)}).OK())
	assert.Equal(t, 1, lu.QueueDepth(0))

	require.True(t, lu.Issue(0, BuildReset(99, 0)).OK())
	assert.Equal(t, 1, lu.QueueDepth(0))
}
