package nand

import (
	"github.com/mj-nvram/nandsim/nand/config"
	"github.com/mj-nvram/nandsim/nand/nlog"
)

// ═══════════════════════════════════════════════════════════════════════════
// DIE FSM
// ═══════════════════════════════════════════════════════════════════════════
//
// The per-die protocol state machine (spec.md §4.2). TransitStage is the
// central dispatch: given the stage the Logical Unit wants to advance to and
// the command register value it should be processed under (the base command
// for the first CLE of a sequence, or the LU-supplied confirm command for a
// later one — getConfirmCommand lives on LogicalUnit, see logicalunit.go),
// it validates the transition, updates per-plane registers, charges elapsed
// time, and reports the next expected stage. Grounded on
// original_source/nfs/Die.cpp's TransitStage/Update/nandArrayTimeParam.
//
// A die accepts a transition only when next_activate == 0 and need_reset ==
// false, except RESET_DELTA, which always executes (spec.md §4.2).

// Die is one NAND logical die: its own array, registers, and FSM.
type Die struct {
	id     uint32
	cfg    DeviceConfig
	params config.Params
	planes []*Plane

	rowReg         []uint32 // per plane, sentinel32 when unset
	colReg         []uint16 // per plane
	randomBytesReg []uint32 // per plane, sentinel32 when unset
	cacheReg       [][]byte // per plane, the data-in/out cache register

	command       Command
	currentStage  Stage
	nextActivate  uint64 // remaining busy time, picoseconds
	needReset     bool
	nandBusy      bool
	standbyDC     bool
	leakDC        bool
	cacheLoadFirst bool
	cacheNoHideTon bool
	nxCommandCount uint32

	fsmTime [fsmStateCount]uint64
	dcTime  [dcRegionCount]uint64

	streams nlog.Streams
}

// NewDie constructs a Die with cfg.NumsPlane Plane instances (storage
// toggles the optional byte-backed store on each).
func NewDie(id uint32, cfg DeviceConfig, params config.Params, storage bool) *Die {
	d := &Die{id: id, cfg: cfg, params: params, currentStage: StageIdle}
	d.planes = make([]*Plane, cfg.NumsPlane)
	for i := range d.planes {
		d.planes[i] = NewPlane(uint32(i), cfg, storage)
	}
	d.allocateRegisters()
	return d
}

func (d *Die) allocateRegisters() {
	n := d.cfg.NumsPlane
	d.rowReg = make([]uint32, n)
	d.colReg = make([]uint16, n)
	d.randomBytesReg = make([]uint32, n)
	d.cacheReg = make([][]byte, n)
	for i := range d.rowReg {
		d.rowReg[i] = sentinel32
		d.randomBytesReg[i] = sentinel32
		d.cacheReg[i] = make([]byte, d.cfg.PageSize)
	}
}

// SetStreams installs the die_internal CSV stream on d and forwards the
// matching plane_read/plane_write streams to every owned Plane.
func (d *Die) SetStreams(s nlog.Streams) {
	d.streams = s
	for _, p := range d.planes {
		p.SetLogs(s.PlaneRead, s.PlaneWrite)
	}
}

// ID returns the die's index within its Logical Unit.
func (d *Die) ID() uint32 { return d.id }

// NextActivate returns the remaining busy time in picoseconds; zero means
// the die can accept a new transition.
func (d *Die) NextActivate() uint64 { return d.nextActivate }

// NeedReset reports whether the die has latched a fatal condition and will
// refuse further progress until soft-reset.
func (d *Die) NeedReset() bool { return d.needReset }

// IsArrayBusy reports whether the die's array (not bus) is mid-operation.
func (d *Die) IsArrayBusy() bool { return d.nandBusy }

// FSMTime returns the accumulated time charged to fsm state s.
func (d *Die) FSMTime(s FSMState) uint64 { return d.fsmTime[s] }

// DCTime returns the accumulated time charged to DC region r.
func (d *Die) DCTime(r DCRegion) uint64 { return d.dcTime[r] }

// Plane returns the idx'th plane of this die.
func (d *Die) Plane(idx uint32) *Plane { return d.planes[idx] }

// CommandRegister returns the most recently latched command.
func (d *Die) CommandRegister() Command { return d.command }

// RowRegister returns the row register for plane idx (sentinel32 if unset).
func (d *Die) RowRegister(idx uint32) uint32 { return d.rowReg[idx] }

func (d *Die) chargeFSM(elapsed uint64, fsm FSMState) {
	d.nextActivate = elapsed
	d.fsmTime[fsm] += elapsed
}

func (d *Die) chargeFSMDC(elapsed uint64, fsm FSMState, dc DCRegion) {
	d.chargeFSM(elapsed, fsm)
	d.dcTime[dc] += elapsed
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// StatusWord composes the 18-bit status value spec.md §6 defines: bit 17 =
// fatal/reset-needed, bit 16 = currently busy, bits 15..0 = current stage.
func (d *Die) StatusWord() uint32 {
	var w uint32
	if d.needReset {
		w |= 1 << 17
	}
	if d.nextActivate > 0 || d.nandBusy {
		w |= 1 << 16
	}
	w |= uint32(d.currentStage) & 0xFFFF
	return w
}

// SetPowerState updates the standby/leakage flags for the next Update call:
// leakage only while truly idle with nothing queued; standby while waiting
// with work queued but not currently consuming array/bus time.
func (d *Die) SetPowerState(queueEmpty bool) {
	if d.nandBusy || d.nextActivate > 0 {
		d.leakDC, d.standbyDC = false, false
		return
	}
	if queueEmpty {
		d.leakDC, d.standbyDC = true, false
	} else {
		d.leakDC, d.standbyDC = false, true
	}
}

// Update decrements the busy counter by min(dt, next_activate) and charges
// the DC power accumulator for whichever of leakage/standby currently
// applies across the full dt span. It returns the host-idle surplus
// dt-next_activate, per spec.md §4.2's "Time advance" section.
func (d *Die) Update(dt uint64) uint64 {
	consumed := dt
	if d.nextActivate < dt {
		consumed = d.nextActivate
	}
	d.nextActivate -= consumed
	if d.leakDC {
		d.dcTime[DCLeakage] += dt
	} else if d.standbyDC {
		d.dcTime[DCStandby] += dt
	}
	return dt - consumed
}

func (d *Die) planeIndexOf(addr uint32) uint32 { return Address(addr).Plane(d.cfg) }

// ═══════════════════════════════════════════════════════════════════════════
// TRANSIT STAGE
// ═══════════════════════════════════════════════════════════════════════════

// TransitStage is the central FSM dispatch. cmd is the command register
// value this step should be processed under: for the first CLE of a
// sequence that is pkt.Command; for a later CLE in the same sequence (the
// LU-issued confirm step) the LU supplies the looked-up confirm command.
// Returns the next expected stage and a Result (non-OK on a recoverable
// protocol violation; assert-class violations panic).
func (d *Die) TransitStage(incoming Stage, cmd Command, pkt *StagePacket) (Stage, Result) {
	if (d.nextActivate > 0 || d.needReset) && incoming != StageResetDelta {
		return StageBusy, dieResult(DieErrorBusy)
	}
	d.currentStage = incoming
	d.streams.DieInternal.Row(d.id, incoming, cmd, pkt.Row, pkt.Col)

	switch incoming {
	case StageALE:
		return d.transitALE(cmd, pkt)
	case StageCLE:
		return d.transitCLE(cmd, pkt)
	case StageTIR:
		return d.transitTIR(pkt)
	case StageTIN, StageTINCache, StageTINDummy, StageTINTail:
		return d.transitTIN(incoming, pkt)
	case StageTON:
		return d.transitTON(pkt)
	case StageTOR:
		return d.transitTOR(pkt)
	case StageReadStatus:
		return d.transitReadStatus(pkt)
	case StageResetDelta:
		return d.transitResetDelta()
	default:
		assertf(false, "Die.TransitStage", "die %d: no transition defined for stage %s", d.id, incoming)
	}
	panic("unreachable")
}

func (d *Die) transitALE(cmd Command, pkt *StagePacket) (Stage, Result) {
	assertf(pkt.Col != sentinelU16 || cmd.IsEraseFamily(), "Die.ALE",
		"die %d: ALE requires a non-null column for %v", d.id, cmd)

	planeIdx := d.planeIndexOf(pkt.Row)
	if pkt.Row != sentinel32 {
		d.rowReg[planeIdx] = pkt.Row
	}
	d.randomBytesReg[planeIdx] = pkt.RandomBytes

	col := pkt.Col
	if cmd.IsInternal() && cmd.IsReadFamily() {
		col = 0
	}
	d.colReg[planeIdx] = col

	var aleBytes uint64
	switch {
	case cmd.IsEraseFamily():
		aleBytes = 3
	case cmd.IsRandom():
		aleBytes = 2
	default:
		aleBytes = 5
	}
	elapsed := (d.params.Timing.TCS - d.params.Timing.TDS) + (d.params.Timing.TDS+d.params.Timing.TDH)*aleBytes
	d.chargeFSM(elapsed, FSMALE)

	var next Stage
	switch {
	case cmd.IsProgFamily():
		if cmd.IsInternal() {
			next = StageCLE
		} else {
			next = StageTIR
		}
	case cmd.IsReadFamily():
		if cmd.IsMultiplaneNonFin() {
			next = StageIdle
		} else {
			next = StageCLE
		}
	case cmd.IsEraseFamily():
		if cmd.IsMultiplaneNonFin() {
			next = StageIdle
		} else {
			next = StageCLE
		}
	default:
		next = StageIdle
	}
	return next, ResultOK
}

func (d *Die) aleElapsed(bytes uint64) uint64 {
	return (d.params.Timing.TCS - d.params.Timing.TDS) + (d.params.Timing.TDS+d.params.Timing.TDH)*bytes
}

func (d *Die) cleElapsed() uint64 {
	return d.params.Timing.TWP + d.params.Timing.TDS + d.params.Timing.TDH
}

// dataInElapsedIO is the TIN_CACHE overlap term: the data-in transfer time
// for bytes actual bytes, spread across the io-pin width.
func (d *Die) dataInElapsedIO(bytes uint64) uint64 {
	ioBytes := uint64(d.cfg.IoBytes())
	if ioBytes == 0 {
		ioBytes = 1
	}
	return d.params.Timing.TWC * bytes / ioBytes
}

// dataInElapsedRaw is the TIN_TAIL overlap term: the same data-in transfer
// time without the io-pin division.
func (d *Die) dataInElapsedRaw(bytes uint64) uint64 {
	return d.params.Timing.TWC * bytes
}

func (d *Die) transitCLE(cmd Command, pkt *StagePacket) (Stage, Result) {
	d.command = cmd

	if cmd == CmdReset {
		d.chargeFSM(d.params.Timing.TWB+d.params.Timing.TRST, FSMCLE)
		return StageResetDelta, ResultOK
	}

	// The non-fin/fin bookkeeping only tracks base commands, one per plane
	// sub-command's first CLE: the later confirm CLE of the same
	// sub-command carries the same IsMultiplaneNonFin/IsMultiplaneFin
	// classification and must not be counted again.
	var res Result
	if !cmd.IsConfirm() {
		if cmd.IsMultiplaneFin() {
			if d.nxCommandCount == 0 {
				d.needReset = true
				res = controllerResult(ControllerErrorUndefinedOrder)
			}
			d.nxCommandCount = 0
		} else if cmd.IsMultiplaneNonFin() {
			d.nxCommandCount++
			if d.nxCommandCount > d.cfg.NumsPlane {
				d.needReset = true
				res = controllerResult(ControllerErrorUndefinedOrder)
			}
		}
	}

	var next Stage
	switch {
	case !cmd.IsConfirm():
		d.chargeFSM(d.cleElapsed(), FSMCLE)
		next = StageALE

	case cmd.IsEraseFamily():
		d.chargeFSM(d.cleElapsed(), FSMCLE)
		elapsed := d.params.TBers(d.cfg.PagesPerBlock)
		d.nandBusy = true
		for p, row := range d.rowReg {
			if row == sentinel32 {
				continue
			}
			block := Address(row).Block(d.cfg)
			d.planes[p].Erase(block)
			d.rowReg[p] = sentinel32
		}
		d.chargeFSMDC(elapsed, FSMErase, DCErase)
		next = StageReadStatus

	case cmd.IsProgFamily() && cmd.IsMultiplaneFin() && cmd.IsCache():
		d.chargeFSM(d.cleElapsed(), FSMCLE)
		next = StageTINTail
	case cmd.IsProgFamily() && cmd.IsMultiplaneFin():
		// The array write for every addressed plane happens once, on the
		// final plane's confirm, mirroring the erase-family commit above:
		// non-final planes only latch data into their cache registers.
		d.chargeFSM(d.cleElapsed(), FSMCLE)
		d.nandBusy = true
		var page uint32
		for p, row := range d.rowReg {
			if row == sentinel32 {
				continue
			}
			block := Address(row).Block(d.cfg)
			page = Address(row).Page(d.cfg)
			res = res.Or(d.planes[p].Write(d.colReg[p], block, page, d.cacheReg[p]))
			d.rowReg[p] = sentinel32
		}
		elapsed := d.params.TProg(page, d.cfg.PagesPerBlock)
		d.chargeFSMDC(elapsed, FSMTIN, DCProg)
		d.nandBusy = false
		next = StageReadStatus
	case cmd.IsProgFamily() && cmd.IsMultiplaneNonFin():
		d.chargeFSM(d.cleElapsed(), FSMCLE)
		next = StageIdle
	case cmd.IsProgFamily() && cmd.IsCache():
		d.chargeFSM(d.cleElapsed(), FSMCLE)
		next = StageTINCache
	case cmd == CmdProgMultiplaneRandomDummyConf:
		d.chargeFSM(d.cleElapsed(), FSMCLE)
		next = StageTINDummy
	case cmd.IsProgFamily():
		d.chargeFSM(d.cleElapsed(), FSMCLE)
		next = StageTIN

	case cmd.IsReadFamily() && cmd.IsCache():
		d.chargeFSM(d.cleElapsed(), FSMCLE)
		if !d.cacheLoadFirst && d.fsmTime[FSMTON] == 0 {
			d.cacheLoadFirst = true
		}
		next = StageTON
	case cmd.IsReadFamily():
		d.chargeFSM(d.cleElapsed(), FSMCLE)
		next = StageTON

	default:
		d.chargeFSM(d.cleElapsed(), FSMCLE)
		next = StageIdle
	}
	return next, res
}

func (d *Die) transitTIR(pkt *StagePacket) (Stage, Result) {
	if !d.command.IsProgFamily() {
		d.needReset = true
		return StageIdle, controllerResult(ControllerErrorUndefinedOrder)
	}
	planeIdx := d.planeIndexOf(pkt.Row)
	rb := d.randomBytesReg[planeIdx]
	ioBytes := uint64(d.cfg.IoBytes())
	if ioBytes == 0 {
		ioBytes = 1
	}
	elapsed := d.params.Timing.TWC * uint64(rb) / ioBytes
	if d.command.IsRandom() {
		elapsed += d.params.Timing.TADL - d.params.Timing.TWC
	}
	d.chargeFSMDC(elapsed, FSMTIR, DCProg)

	if pkt.Data != nil && rb != sentinel32 {
		col := d.colReg[planeIdx]
		end := uint32(col) + rb
		if end > d.cfg.PageSize {
			end = d.cfg.PageSize
		}
		copy(d.cacheReg[planeIdx][col:end], pkt.Data[col:])
	}

	var next Stage
	if d.command.IsRandomNonFin() {
		next = StageIdle
	} else {
		next = StageCLE
	}
	return next, ResultOK
}

func (d *Die) transitTIN(incoming Stage, pkt *StagePacket) (Stage, Result) {
	d.nandBusy = true
	planeIdx := d.planeIndexOf(pkt.Row)
	row := d.rowReg[planeIdx]
	block := Address(row).Block(d.cfg)
	page := Address(row).Page(d.cfg)
	rb := uint64(d.randomBytesReg[planeIdx])
	if d.randomBytesReg[planeIdx] == sentinel32 {
		rb = uint64(d.cfg.PageSize)
	}

	var elapsed uint64
	var next Stage
	switch incoming {
	case StageTIN:
		elapsed = d.params.TProg(page, d.cfg.PagesPerBlock)
		next = StageReadStatus
	case StageTINCache:
		latch := d.dataInElapsedIO(rb) + d.cleElapsed() + d.aleElapsed(5)
		elapsed = absDiff(d.params.TProg(page, d.cfg.PagesPerBlock), latch)
		next = StageIdle
	case StageTINDummy:
		elapsed = d.params.TDbsy(page, d.cfg.PagesPerBlock)
		next = StageIdle
	case StageTINTail:
		latch := d.cleElapsed() + d.aleElapsed(5) + d.dataInElapsedRaw(rb)
		elapsed = absDiff(d.params.TProg(page, d.cfg.PagesPerBlock), latch)
		next = StageReadStatus
	}

	res := d.planes[planeIdx].Write(d.colReg[planeIdx], block, page, d.cacheReg[planeIdx])
	d.chargeFSMDC(elapsed, FSMTIN, DCProg)
	d.randomBytesReg[planeIdx] = sentinel32
	if incoming != StageTINCache {
		d.nandBusy = false
	}
	return next, res
}

func (d *Die) transitTON(pkt *StagePacket) (Stage, Result) {
	planeIdx := d.planeIndexOf(pkt.Row)
	row := d.rowReg[planeIdx]
	page := Address(row).Page(d.cfg)
	assertf(page < d.cfg.PagesPerBlock, "Die.TON", "die %d: page %d exceeds pages-per-block %d", d.id, page, d.cfg.PagesPerBlock)
	block := Address(row).Block(d.cfg)

	d.nandBusy = true

	var res Result
	if d.command.IsMultiplaneFin() {
		for p, r := range d.rowReg {
			if r == sentinel32 {
				continue
			}
			pb := Address(r).Block(d.cfg)
			pp := Address(r).Page(d.cfg)
			res = res.Or(d.planes[p].Read(d.colReg[p], pb, pp, d.cacheReg[p]))
		}
	} else {
		res = d.planes[planeIdx].Read(d.colReg[planeIdx], block, page, d.cacheReg[planeIdx])
	}

	var elapsed uint64
	switch {
	case d.cacheLoadFirst:
		elapsed = d.params.TDCBSYR1(page, d.cfg.PagesPerBlock)
		d.cacheLoadFirst = false
	case d.command.IsCache() && !d.cacheNoHideTon:
		elapsed = d.params.TDCBSYR2(page, d.cfg.PagesPerBlock)
	default:
		elapsed = d.params.Timing.TR
	}
	d.chargeFSMDC(elapsed, FSMTON, DCRead)
	d.nandBusy = false

	if d.command.IsCache() {
		d.rowReg[planeIdx] = Address(row).WithPage(d.cfg, page+1)
	}

	var next Stage
	if d.command.IsMultiplaneNonFin() {
		next = StageIdle
	} else {
		next = StageTOR
	}
	return next, res
}

func (d *Die) transitTOR(pkt *StagePacket) (Stage, Result) {
	if !d.command.IsReadFamily() {
		d.needReset = true
		return StageIdle, controllerResult(ControllerErrorUndefinedOrder)
	}
	planeIdx := d.planeIndexOf(pkt.Row)
	rb := d.randomBytesReg[planeIdx]
	col := d.colReg[planeIdx]
	if pkt.Data != nil && rb != sentinel32 {
		end := uint32(col) + rb
		if end > d.cfg.PageSize {
			end = d.cfg.PageSize
		}
		copy(pkt.Data[col:], d.cacheReg[planeIdx][col:end])
	}
	ioBytes := uint64(d.cfg.IoBytes())
	if ioBytes == 0 {
		ioBytes = 1
	}
	elapsed := d.params.Timing.TRR + d.params.Timing.TRC*uint64(rb)/ioBytes
	d.chargeFSMDC(elapsed, FSMTOR, DCRead)
	d.randomBytesReg[planeIdx] = sentinel32
	return StageIdle, ResultOK
}

func (d *Die) transitReadStatus(pkt *StagePacket) (Stage, Result) {
	elapsed := d.params.Timing.TDS + d.params.Timing.TWHR + d.params.Timing.TREA + d.params.Timing.TRC
	d.nextActivate = elapsed
	if pkt.StatusData != nil {
		*pkt.StatusData = d.StatusWord()
	}
	return StageIdle, ResultOK
}

func (d *Die) transitResetDelta() (Stage, Result) {
	elapsed := d.params.Timing.TWB + d.params.Timing.TRST
	d.nextActivate = elapsed
	d.softReset()
	return StageIdle, ResultOK
}

func (d *Die) softReset() {
	d.needReset = false
	d.nandBusy = false
	d.command = CmdNotDetermined
	d.nxCommandCount = 0
	d.cacheLoadFirst = false
	d.cacheNoHideTon = false
	for i := range d.rowReg {
		d.rowReg[i] = sentinel32
		d.colReg[i] = 0
		d.randomBytesReg[i] = sentinel32
	}
}

// HardReset clears FSM/power accumulators, every register, and every plane's
// wear/order/backing-store state, and installs cfg as the new device
// configuration.
func (d *Die) HardReset(cfg DeviceConfig, params config.Params) {
	d.cfg = cfg
	d.params = params
	d.softReset()
	d.nextActivate = 0
	d.fsmTime = [fsmStateCount]uint64{}
	d.dcTime = [dcRegionCount]uint64{}
	d.allocateRegisters()
	for _, p := range d.planes {
		p.HardReset(cfg)
	}
}
