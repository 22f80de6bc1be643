package nand

import "github.com/mj-nvram/nandsim/nand/nlog"

// ═══════════════════════════════════════════════════════════════════════════
// LOGICAL UNIT — bus arbitrator
// ═══════════════════════════════════════════════════════════════════════════
//
// Owns N dies that share one command/data bus. Buffers pending stage packets
// per die, arbitrates bus ownership, steps each die forward, fires I/O
// completion callbacks. Grounded on
// original_source/nfs/LogicalUnit.cpp (IssueNandStage, Update, two-pass
// arbitration retry, getConfirmCommand), spec.md §4.3.
//
// Bus id derivation resolves spec.md §9's open question explicitly:
// busId = lun*numDies + dieId (not the source's lun*dieId + dieId).

// CompletionFunc is invoked once per completed transaction:
// (hostTransID, arrivalCycle, currentCycle).
type CompletionFunc func(hostTransID uint32, arrivalCycle, currentCycle uint64)

// LogicalUnit owns dies sharing one command/data bus.
type LogicalUnit struct {
	lun        uint8
	numDies    uint32
	clockPs    uint64
	transDepth uint32

	dies     []*Die
	queues   [][]*StagePacket
	expected []Stage
	awaiting []bool // awaiting the confirm CLE for the head packet
	complete []bool
	firstArr []uint64

	busOwner     int32 // -1 == free
	currentCycle uint64

	onComplete CompletionFunc
	streams    nlog.Streams
}

// NewLogicalUnit constructs a LogicalUnit owning numDies Dies sharing one
// bus, each queue bounded to transDepth packets.
func NewLogicalUnit(lun uint8, dies []*Die, clockPs uint64, transDepth uint32) *LogicalUnit {
	n := len(dies)
	lu := &LogicalUnit{
		lun:        lun,
		numDies:    uint32(n),
		clockPs:    clockPs,
		transDepth: transDepth,
		dies:       dies,
		queues:     make([][]*StagePacket, n),
		expected:   make([]Stage, n),
		awaiting:   make([]bool, n),
		complete:   make([]bool, n),
		firstArr:   make([]uint64, n),
		busOwner:   -1,
	}
	for i := range lu.expected {
		lu.expected[i] = StageCLE
	}
	return lu
}

// BusID computes the LU-relative bus id for dieID, per spec.md §9's
// resolved open question.
func (lu *LogicalUnit) BusID(dieID uint32) uint32 {
	return uint32(lu.lun)*lu.numDies + dieID
}

// SetCompletionCallback installs fn as the I/O completion callback.
func (lu *LogicalUnit) SetCompletionCallback(fn CompletionFunc) { lu.onComplete = fn }

// SetStreams installs the bus_transaction/io_completion CSV streams and
// forwards the die_internal/plane_read/plane_write streams to every owned
// Die.
func (lu *LogicalUnit) SetStreams(s nlog.Streams) {
	lu.streams = s
	for _, d := range lu.dies {
		d.SetStreams(s)
	}
}

// confirmTable maps a base command to the matching confirm command the LU
// issues between ALE and the array stage, per spec.md §4.2's "Command
// alphabet" paragraph and original_source/nfs/LogicalUnit.cpp's
// getConfirmCommand.
var confirmTable = map[Command]Command{
	CmdReadPage:                  CmdReadPageConf,
	CmdReadMultiplaneInit:        CmdReadMultiplaneInitConf,
	CmdReadMultiplaneInitFin:     CmdReadMultiplaneInitFinConf,
	CmdReadMultiplane:            CmdReadMultiplaneConf,
	CmdReadCacheAddrInit:         CmdReadCacheAddrInitConf,
	CmdReadMultiplaneCache:       CmdReadMultiplaneCacheConf,
	CmdReadInternal:              CmdReadInternalConf,
	CmdReadInternalMultiplaneFin: CmdReadInternalMultiplaneFinConf,
	CmdReadRandom:                CmdReadRandomConf,
	CmdProgPage:                  CmdProgPageConf,
	CmdProgMultiplane:            CmdProgMultiplaneConf,
	CmdProgMultiplaneRandomDummy: CmdProgMultiplaneRandomDummyConf,
	CmdProgMultiplaneFin:         CmdProgMultiplaneFinConf,
	CmdProgMultiplaneFinRandom:   CmdProgMultiplaneFinRandomConf,
	CmdProgMultiplaneCache:       CmdProgMultiplaneCacheConf,
	CmdProgMultiplaneCacheFin:    CmdProgMultiplaneCacheFinConf,
	CmdProgCache:                 CmdProgCacheConf,
	CmdProgRandomFin:             CmdProgRandomFinConf,
	CmdProgInternal:              CmdProgInternalConf,
	CmdProgInternalMultiplane:    CmdProgInternalMultiplaneConf,
	CmdProgInternalMultiplaneFin: CmdProgInternalMultiplaneFinConf,
	CmdBlockErase:                CmdBlockEraseConf,
	CmdBlockMultiplaneEraseFin:   CmdBlockMultiplaneEraseFinConf,
}

func getConfirmCommand(base Command) Command {
	if c, ok := confirmTable[base]; ok {
		return c
	}
	return base
}

// Issue pushes pkt onto dieID's bus queue. RESET clears the queue first.
func (lu *LogicalUnit) Issue(dieID uint32, pkt *StagePacket) Result {
	if pkt.Command == CmdReset {
		lu.queues[dieID] = nil
		lu.expected[dieID] = StageCLE
		lu.awaiting[dieID] = false
		lu.complete[dieID] = false
	}
	if uint32(len(lu.queues[dieID])) >= lu.transDepth {
		return flashResult(FlashErrorBusy)
	}
	if len(lu.queues[dieID]) == 0 {
		lu.firstArr[dieID] = pkt.ArrivalCycle
	}
	lu.queues[dieID] = append(lu.queues[dieID], pkt)
	return ResultOK
}

// QueueDepth returns the number of packets currently queued for dieID.
func (lu *LogicalUnit) QueueDepth(dieID uint32) int { return len(lu.queues[dieID]) }

func roundToClockPeriod(dt, clockPs uint64) uint64 {
	if clockPs == 0 {
		return dt
	}
	return (dt / clockPs) * clockPs
}

// Update advances simulated time by dt picoseconds across every die, then
// arbitrates stage advances (with a second retry pass for bus conflicts, per
// spec.md §4.3), and returns the minimum remaining busy time across dies.
func (lu *LogicalUnit) Update(dt uint64) uint64 {
	lu.currentCycle += dt
	rounded := roundToClockPeriod(dt, lu.clockPs)
	for i, d := range lu.dies {
		d.SetPowerState(len(lu.queues[i]) == 0)
		d.Update(rounded)
	}
	lu.advance()
	lu.advance() // second pass catches a die that lost the bus race on pass one

	min := ^uint64(0)
	for _, d := range lu.dies {
		if d.NextActivate() < min {
			min = d.NextActivate()
		}
	}
	return min
}

func (lu *LogicalUnit) advance() {
	for i := range lu.dies {
		lu.advanceDie(uint32(i))
	}
}

func (lu *LogicalUnit) advanceDie(i uint32) {
	d := lu.dies[i]
	if d.NextActivate() > 0 {
		return
	}

	if lu.complete[i] {
		if len(lu.queues[i]) > 0 {
			pkt := lu.queues[i][0]
			if pkt.IsLastOfTransaction {
				lu.streams.IOCompletion.Row(pkt.StageID, lu.firstArr[i], lu.currentCycle)
				if lu.onComplete != nil {
					lu.onComplete(pkt.StageID, lu.firstArr[i], lu.currentCycle)
				}
			}
			lu.queues[i] = lu.queues[i][1:]
		}
		lu.complete[i] = false
		lu.expected[i] = StageCLE
		lu.awaiting[i] = false
		if lu.busOwner == int32(i) {
			lu.busOwner = -1
		}
	}

	if len(lu.queues[i]) == 0 {
		if lu.busOwner == int32(i) {
			lu.busOwner = -1
		}
		return
	}

	next := lu.expected[i]
	if next.IsBusStage() {
		if lu.busOwner != -1 && lu.busOwner != int32(i) {
			return // bus conflict: retried by the second advance() pass
		}
		lu.busOwner = int32(i)
		lu.streams.BusTransaction.Row(i, next, lu.firstArr[i], lu.currentCycle)
	} else if lu.busOwner == int32(i) {
		lu.busOwner = -1 // array stages don't hold the bus
	}

	pkt := lu.queues[i][0]
	cmd := pkt.Command
	if next == StageCLE && lu.awaiting[i] {
		cmd = getConfirmCommand(d.CommandRegister())
		lu.awaiting[i] = false
	}

	nextStage, _ := d.TransitStage(next, cmd, pkt)
	if next != StageCLE && nextStage == StageCLE {
		lu.awaiting[i] = true
	}
	lu.expected[i] = nextStage

	if nextStage == StageIdle {
		lu.complete[i] = true
		if lu.busOwner == int32(i) {
			lu.busOwner = -1
		}
	}
}

// HardReset clears every queue and bus-arbitration state; the caller is
// responsible for hard-resetting each Die separately (it needs the new
// config.Params value, which this package-internal type does not import to
// avoid coupling LogicalUnit's signature to the config package).
func (lu *LogicalUnit) HardReset() {
	for i := range lu.dies {
		lu.queues[i] = nil
		lu.expected[i] = StageCLE
		lu.awaiting[i] = false
		lu.complete[i] = false
		lu.firstArr[i] = 0
	}
	lu.busOwner = -1
	lu.currentCycle = 0
}
