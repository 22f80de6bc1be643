package nand

import (
	"github.com/mj-nvram/nandsim/nand/config"
	"github.com/mj-nvram/nandsim/nand/nlog"
)

// ═══════════════════════════════════════════════════════════════════════════
// CONTROLLER
// ═══════════════════════════════════════════════════════════════════════════
//
// Owns every LogicalUnit, expands each submitted Transaction into stage
// packets via the stagebuilder functions, tracks the per-die round-robin
// plane counter for auto plane addressing, enforces cache-read ascending
// page order, and reports per-die traffic/bus statistics. Grounded on
// original_source/nfs/NandController.cpp's Submit/Update/stats bookkeeping
// and LogicalUnit ownership shape, spec.md §4.4.

// DieStats accumulates per-die traffic and bus-time counters across the
// life of a Controller.
type DieStats struct {
	TrafficBytes  uint64
	BusBusyPs     uint64
	IdlePs        uint64
	ContentionCnt uint64
}

type dieAddrState struct {
	planeCounter  uint32 // next plane to hand out under auto addressing
	cacheOpenPage uint32
	cacheOpen     bool
}

// Controller is the top-level simulated device: a set of LogicalUnits, each
// owning the dies behind one shared command/data bus.
type Controller struct {
	cfg     DeviceConfig
	params  config.Params
	streams nlog.Streams

	luns      []*LogicalUnit
	addrState [][]dieAddrState // [lun][die]
	stats     [][]DieStats     // [lun][die]

	nextHostID uint32
}

// NewController builds a Controller with numLuns LogicalUnits, each owning
// cfg.NumsDie Dies sharing one bus. storage toggles the optional byte-backed
// plane store.
func NewController(cfg DeviceConfig, params config.Params, numLuns uint8, storage bool, streams nlog.Streams) *Controller {
	c := &Controller{cfg: cfg, params: params, streams: streams}
	c.luns = make([]*LogicalUnit, numLuns)
	c.addrState = make([][]dieAddrState, numLuns)
	c.stats = make([][]DieStats, numLuns)
	for l := range c.luns {
		dies := make([]*Die, cfg.NumsDie)
		for d := range dies {
			dies[d] = NewDie(uint32(d), cfg, params, storage)
		}
		c.luns[l] = NewLogicalUnit(uint8(l), dies, cfg.ClockPeriodPs, 4)
		c.luns[l].SetStreams(streams)
		c.addrState[l] = make([]dieAddrState, cfg.NumsDie)
		c.stats[l] = make([]DieStats, cfg.NumsDie)
	}
	return c
}

// SetCompletionCallback installs fn on every owned LogicalUnit.
func (c *Controller) SetCompletionCallback(fn CompletionFunc) {
	for _, lu := range c.luns {
		lu.SetCompletionCallback(fn)
	}
}

// Lun returns the idx'th LogicalUnit, for tests and diagnostics.
func (c *Controller) Lun(idx uint8) *LogicalUnit { return c.luns[idx] }

// Stats returns the accumulated counters for (lun, die).
func (c *Controller) Stats(lun uint8, die uint32) DieStats { return c.stats[lun][die] }

func (c *Controller) planeAddrs(lun uint8, dieID uint32, txn *Transaction) []Address {
	if len(txn.PlaneAddrs) > 0 {
		return txn.PlaneAddrs
	}
	count := txn.PlaneCount
	if count == 0 {
		count = c.cfg.NumsPlane
	}
	st := &c.addrState[lun][dieID]
	addrs := make([]Address, count)
	for i := uint32(0); i < count; i++ {
		plane := (st.planeCounter + i) % c.cfg.NumsPlane
		addrs[i] = txn.Addr.WithPlane(c.cfg, plane)
	}
	st.planeCounter = (st.planeCounter + count) % c.cfg.NumsPlane
	return addrs
}

// checkCacheOrder enforces spec.md §4.1's ascending-page rule for cache
// reads: a later packet in the same chain must not address an earlier page
// than the one already latched. Returns a non-OK controllerResult on
// violation (the caller still proceeds, mirroring Plane.Write's
// flag-but-continue style).
func (c *Controller) checkCacheOrder(lun uint8, dieID uint32, page uint32, isLast bool) Result {
	st := &c.addrState[lun][dieID]
	var res Result
	if st.cacheOpen && page < st.cacheOpenPage {
		res = controllerResult(ControllerErrorUndefinedOrder)
	}
	st.cacheOpenPage = page
	st.cacheOpen = !isLast
	return res
}

// Submit expands txn into stage packets and enqueues them on the bus queue
// for txn.Addr's die within txn.Lun. Returns the OR-combination of every
// non-OK Result encountered (carrying the first one's domain), or ResultOK.
func (c *Controller) Submit(txn *Transaction) Result {
	if txn.HostTransID == 0 {
		c.nextHostID++
		txn.HostTransID = c.nextHostID
	}
	lun := c.luns[txn.Lun]
	dieID := txn.Addr.Die(c.cfg)
	arrival := busCurrentCycle(lun)

	var pkts []*StagePacket
	var res Result

	switch txn.Op {
	case OpRead:
		pkts = BuildReadPage(c.cfg, txn, arrival)
	case OpReadRandom:
		pkts = BuildReadRandomColSelection(c.cfg, txn, arrival)
	case OpReadCache:
		page := txn.Addr.Page(c.cfg)
		res = c.checkCacheOrder(txn.Lun, dieID, page, txn.IsLastNxSub)
		first := !c.addrState[txn.Lun][dieID].cacheOpen || page == 0
		pkts = BuildReadPageCache(c.cfg, txn, arrival, first)
	case OpProg:
		pkts = BuildWritePage(c.cfg, txn, arrival)
	case OpProgRandom:
		pkts = BuildWriteRandomColSelection(c.cfg, txn, arrival)
	case OpProgCache:
		pkts = BuildWritePageCache(c.cfg, txn, arrival)
	case OpReadMultiplane, OpReadMultiplaneRandom:
		addrs := c.planeAddrs(txn.Lun, dieID, txn)
		pkts = BuildReadNxPlane(c.cfg, txn, arrival, addrs)
	case OpProgMultiplane:
		addrs := c.planeAddrs(txn.Lun, dieID, txn)
		pkts = BuildWriteNxPlane(c.cfg, txn, arrival, addrs, splitPlaneData(txn.Data, len(addrs), c.cfg.PageSize))
	case OpProgMultiplaneRandom:
		addrs := c.planeAddrs(txn.Lun, dieID, txn)
		pkts = BuildWriteNxPlaneRandomColSelection(c.cfg, txn, arrival, addrs, splitPlaneData(txn.Data, len(addrs), c.cfg.PageSize))
	case OpProgMultiplaneCache:
		addrs := c.planeAddrs(txn.Lun, dieID, txn)
		pkts = BuildWriteNxPlaneCache(c.cfg, txn, arrival, addrs, splitPlaneData(txn.Data, len(addrs), c.cfg.PageSize))
	case OpBlockErase:
		pkts = BuildEraseBlock(txn, arrival)
	case OpBlockEraseMultiplane:
		addrs := c.planeAddrs(txn.Lun, dieID, txn)
		pkts = BuildEraseNxBlock(txn, arrival, addrs)
	case OpInternalDataMovement:
		pkts = BuildInternalDataMovement(txn, arrival)
	case OpInternalDataMovementMultiplane:
		srcAddrs := c.planeAddrs(txn.Lun, dieID, txn)
		dstAddrs := make([]Address, len(srcAddrs))
		for i, a := range srcAddrs {
			off := a.Plane(c.cfg)
			dstAddrs[i] = txn.DestAddr.WithPlane(c.cfg, off)
		}
		pkts = BuildInternalDataMovementNxPlane(txn, arrival, srcAddrs, dstAddrs)
	default:
		return controllerResult(ControllerErrorInvalidParam)
	}

	for _, pkt := range pkts {
		if r := lun.Issue(dieID, pkt); !r.OK() {
			res = res.Or(r)
		}
	}
	c.stats[txn.Lun][dieID].TrafficBytes += uint64(txn.NumBytes)
	return res
}

// splitPlaneData slices data into n contiguous pageSize-sized spans, one per
// plane, returning nil spans where data is nil (no-storage/status-only
// transactions) or too short.
func splitPlaneData(data []byte, n int, pageSize uint32) [][]byte {
	if data == nil {
		return nil
	}
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		start := uint32(i) * pageSize
		end := start + pageSize
		if start >= uint32(len(data)) {
			continue
		}
		if end > uint32(len(data)) {
			end = uint32(len(data))
		}
		out[i] = data[start:end]
	}
	return out
}

func busCurrentCycle(lu *LogicalUnit) uint64 { return lu.currentCycle }

// LogCycleTotals writes one state_cycles and one power_cycles row per die,
// capturing the per-stage and per-DC-region accumulated time charged so far.
// The caller decides the cadence (e.g. once at shutdown, or periodically).
func (c *Controller) LogCycleTotals() {
	for _, lun := range c.luns {
		for _, d := range lun.dies {
			c.streams.StateCycles.Row(d.id,
				d.FSMTime(FSMALE), d.FSMTime(FSMCLE), d.FSMTime(FSMTIR),
				d.FSMTime(FSMTOR), d.FSMTime(FSMTIN), d.FSMTime(FSMTON),
				d.FSMTime(FSMErase))
			c.streams.PowerCycles.Row(d.id,
				d.DCTime(DCRead), d.DCTime(DCProg), d.DCTime(DCErase),
				d.DCTime(DCStandby), d.DCTime(DCLeakage))
		}
	}
}

// Update advances every LogicalUnit by dt picoseconds and folds per-die
// idle/busy bookkeeping into Stats, returning the minimum remaining busy
// time across every die (a host driving Update can use this as the next
// "interesting" wake-up delta instead of polling at a fixed quantum, per
// spec.md §4.4's bubble-time host-stall modeling).
func (c *Controller) Update(dt uint64) uint64 {
	min := ^uint64(0)
	for l, lun := range c.luns {
		next := lun.Update(dt)
		if next < min {
			min = next
		}
		for d := uint32(0); d < c.cfg.NumsDie; d++ {
			if lun.QueueDepth(d) == 0 {
				c.stats[l][d].IdlePs += dt
			} else {
				c.stats[l][d].BusBusyPs += dt
			}
		}
	}
	return min
}

// HardReset reconfigures every owned Die/Plane to cfg/params and clears all
// bus-arbitration and statistics state.
func (c *Controller) HardReset(cfg DeviceConfig, params config.Params) {
	c.cfg = cfg
	c.params = params
	for l, lun := range c.luns {
		lun.HardReset()
		for _, d := range lun.dies {
			d.HardReset(cfg, params)
		}
		c.addrState[l] = make([]dieAddrState, cfg.NumsDie)
		c.stats[l] = make([]DieStats, cfg.NumsDie)
	}
}

// SoftReset issues a RESET stage packet to every die on every LogicalUnit,
// draining their queues per spec.md §4.2's soft-reset semantics.
func (c *Controller) SoftReset() {
	for _, lun := range c.luns {
		for d := range lun.dies {
			c.nextHostID++
			lun.Issue(uint32(d), BuildReset(c.nextHostID, busCurrentCycle(lun)))
		}
	}
}
