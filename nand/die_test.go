package nand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj-nvram/nandsim/nand/config"
)

func testParams() config.Params {
	return config.Params{
		Timing: config.Timing{
			TADL: 70, TALH: 10, TALS: 10, TCH: 5, TCLH: 10, TCLS: 10, TCS: 20,
			TDH: 5, TDS: 12, TWC: 25, TWH: 10, TWP: 12, TWW: 100,
			TAR: 10, TCEA: 45, TCHZ: 20, TCOH: 15,
			TDCBSYR1: 200, TDCBSYR2: 100, TIR: 10, TR: 2500, TRC: 20,
			TREA: 16, TREH: 7, THOH: 15, TRHZ: 30, TRLOH: 5, TRP: 10, TRR: 20,
			TRST: 5000, TWB: 100, TWHR: 60, TBERS: 20000, TCBSY: 300,
			TDBSY: 500, TPROG: 7000,
			IMVProg: 5000, IMVDCBSYR1: 150, IMVDCBSYR2: 80, IMVBers: 15000,
			IMVCbsy: 250, IMVDbsy: 400,
		},
		System: config.System{NOP: 1, NumsPlane: 2, NumsDie: 2, NumsBlocks: 4,
			NumsPages: 8, NumsPgSize: 512, NumsIOPins: 8, MaxEraseCnt: 100, ClockPeriodPs: 1},
		Env: config.Env{Variation: config.VariationAlwaysTypical},
	}
}

// forceReady clears a die's busy counter unconditionally, standing in for
// an embedder that waited out whatever elapsed time the last stage charged.
func forceReady(d *Die) { d.Update(1 << 40) }

func TestDieProgramThenReadCycle(t *testing.T) {
	cfg := testCfg()
	params := testParams()
	d := NewDie(0, cfg, params, true)

	addr := ComposeAddress(cfg, 0, 1, 0, 2)
	data := make([]byte, cfg.PageSize)
	for i := range data {
		data[i] = byte(i + 1)
	}
	pkt := &StagePacket{Command: CmdProgPage, Row: uint32(addr), Col: 0, RandomBytes: cfg.PageSize, Data: data}

	next, res := d.TransitStage(StageCLE, CmdProgPage, pkt)
	require.True(t, res.OK())
	assert.Equal(t, StageALE, next)
	forceReady(d)

	next, res = d.TransitStage(StageALE, CmdProgPage, pkt)
	require.True(t, res.OK())
	assert.Equal(t, StageTIR, next)
	forceReady(d)

	next, res = d.TransitStage(StageTIR, CmdProgPage, pkt)
	require.True(t, res.OK())
	assert.Equal(t, StageCLE, next)
	forceReady(d)

	confirm := getConfirmCommand(CmdProgPage)
	assert.Equal(t, CmdProgPageConf, confirm)
	next, res = d.TransitStage(StageCLE, confirm, pkt)
	require.True(t, res.OK())
	assert.Equal(t, StageTIN, next)
	forceReady(d)

	next, res = d.TransitStage(StageTIN, confirm, pkt)
	require.True(t, res.OK())
	assert.Equal(t, StageReadStatus, next)
	forceReady(d)

	var status uint32
	pkt.StatusData = &status
	next, res = d.TransitStage(StageReadStatus, confirm, pkt)
	require.True(t, res.OK())
	assert.Equal(t, StageIdle, next)
	assert.Equal(t, uint32(2), d.planes[0].LastProgrammedPage(1))

	// Now read the same page back through the die's own cycle.
	forceReady(d)
	out := make([]byte, cfg.PageSize)
	readPkt := &StagePacket{Command: CmdReadPage, Row: uint32(addr), Col: 0, RandomBytes: cfg.PageSize, Data: out}

	next, res = d.TransitStage(StageCLE, CmdReadPage, readPkt)
	require.True(t, res.OK())
	assert.Equal(t, StageALE, next)
	forceReady(d)

	next, res = d.TransitStage(StageALE, CmdReadPage, readPkt)
	require.True(t, res.OK())
	assert.Equal(t, StageCLE, next)
	forceReady(d)

	readConfirm := getConfirmCommand(CmdReadPage)
	next, res = d.TransitStage(StageCLE, readConfirm, readPkt)
	require.True(t, res.OK())
	assert.Equal(t, StageTON, next)
	forceReady(d)

	next, res = d.TransitStage(StageTON, readConfirm, readPkt)
	require.True(t, res.OK())
	assert.Equal(t, StageTOR, next)
	forceReady(d)

	next, res = d.TransitStage(StageTOR, readConfirm, readPkt)
	require.True(t, res.OK())
	assert.Equal(t, StageIdle, next)
	assert.Equal(t, data, out)
}

func TestDieStatusWordEncodesStageAndBusy(t *testing.T) {
	cfg := testCfg()
	d := NewDie(0, cfg, testParams(), false)
	d.currentStage = StageTON
	d.nandBusy = true
	w := d.StatusWord()
	assert.NotZero(t, w&(1<<16))
	assert.Equal(t, uint32(StageTON), w&0xFFFF)
}

func TestDieBusyRefusesTransitionsUntilCleared(t *testing.T) {
	cfg := testCfg()
	d := NewDie(0, cfg, testParams(), false)
	d.nextActivate = 100

	pkt := &StagePacket{Command: CmdReadPage, Row: 0, Col: 0, RandomBytes: cfg.PageSize}
	next, res := d.TransitStage(StageCLE, CmdReadPage, pkt)
	assert.Equal(t, StageBusy, next)
	assert.False(t, res.OK())
	assert.True(t, res.Is(DieErrorBusy))
}

func TestDieHardResetClearsEverything(t *testing.T) {
	cfg := testCfg()
	d := NewDie(0, cfg, testParams(), true)
	d.needReset = true
	d.fsmTime[FSMCLE] = 99

	d.HardReset(cfg, testParams())
	assert.False(t, d.NeedReset())
	assert.Equal(t, uint64(0), d.FSMTime(FSMCLE))
	assert.Equal(t, uint32(sentinel32), d.rowReg[0])
}
