package nand

import "github.com/mj-nvram/nandsim/nand/nlog"

// ═══════════════════════════════════════════════════════════════════════════
// PLANE
// ═══════════════════════════════════════════════════════════════════════════
//
// Enforces the device-level physical constraints (spec.md §4.1): ascending
// in-block write order, NOP (writes-per-page between erases), and endurance
// (erases-per-block), plus an optional byte-backed store for page contents.
// Grounded on original_source/nfs/Plane.cpp's Read/Write/Erase. The original
// lazily mmaps "virtual block groups" via boost::iostreams; no pack repo
// imports an mmap library, so the backing store here is a plain lazily
// allocated []byte per block group — the grouping concept is kept, the
// memory-mapping mechanism is not (see DESIGN.md).

const virtualBlockGroupSize = 8 // blocks per lazily-allocated backing group, mirrors NAND_VIRTUAL_BLOCK_IDX_RESOLUTION

// Plane models one plane's wear/order bookkeeping and optional byte storage.
type Plane struct {
	id  uint32
	cfg DeviceConfig

	eraseCount     []uint32 // per block
	lastProgPage   []uint32 // per block, last-programmed page offset
	nopCounter     [][]uint8 // per block, per page

	storageEnabled bool
	groups         [][]byte // lazily allocated per virtual block group

	readLog  *nlog.Stream
	writeLog *nlog.Stream
}

// NewPlane constructs a Plane for the given device geometry. storage enables
// the optional byte-backed store; when false, accounting still runs but no
// bytes are read or written (spec.md §4.1's "no storage" mode).
func NewPlane(id uint32, cfg DeviceConfig, storage bool) *Plane {
	p := &Plane{
		id:             id,
		cfg:            cfg,
		eraseCount:     make([]uint32, cfg.BlocksPerDie),
		lastProgPage:   make([]uint32, cfg.BlocksPerDie),
		nopCounter:     make([][]uint8, cfg.BlocksPerDie),
		storageEnabled: storage,
	}
	for i := range p.nopCounter {
		p.nopCounter[i] = make([]uint8, cfg.PagesPerBlock)
	}
	if storage {
		numGroups := (cfg.BlocksPerDie + virtualBlockGroupSize - 1) / virtualBlockGroupSize
		p.groups = make([][]byte, numGroups)
	}
	return p
}

// SetLogs installs the plane_read/plane_write CSV streams; either may be nil
// to disable that stream.
func (p *Plane) SetLogs(readLog, writeLog *nlog.Stream) {
	p.readLog = readLog
	p.writeLog = writeLog
}

func (p *Plane) groupFor(block uint32) []byte {
	groupIdx := block / virtualBlockGroupSize
	if p.groups[groupIdx] == nil {
		p.groups[groupIdx] = make([]byte, p.cfg.BlockSize()*virtualBlockGroupSize)
	}
	return p.groups[groupIdx]
}

func (p *Plane) blockOffset(block uint32, page uint32) uint32 {
	withinGroup := block % virtualBlockGroupSize
	return withinGroup*p.cfg.BlockSize() + page*p.cfg.PageSize
}

// Write programs data[col:] into (block, page)'s cache-register-equivalent
// backing bytes, enforcing NOP/order/wearout. All applicable violation bits
// are OR-combined into the returned Result; the write still proceeds so
// accounting stays consistent with the original's "flag but continue".
func (p *Plane) Write(col uint16, block, page uint32, data []byte) Result {
	var res Result

	if page >= p.cfg.PagesPerBlock || block >= p.cfg.BlocksPerDie {
		return planeResult(PlaneErrorAddress)
	}

	if p.nopCounter[block][page] >= uint8(p.cfg.NOP) {
		res = res.Or(planeResult(PlaneErrorNOPViolation))
	}
	p.nopCounter[block][page]++

	if p.lastProgPage[block] > page {
		res = res.Or(planeResult(PlaneErrorInorderViolation))
	}

	if p.eraseCount[block] >= p.cfg.Endurance {
		res = res.Or(planeResult(PlaneErrorWearout))
	}

	p.lastProgPage[block] = page

	if p.storageEnabled && data != nil {
		buf := p.groupFor(block)
		off := p.blockOffset(block, page)
		copy(buf[off+uint32(col):off+p.cfg.PageSize], data[col:])
	}
	p.writeLog.Row(p.id, block, page)
	return res
}

// Read copies (block, page)'s backing bytes from col onward into out.
func (p *Plane) Read(col uint16, block, page uint32, out []byte) Result {
	if page >= p.cfg.PagesPerBlock || block >= p.cfg.BlocksPerDie {
		return planeResult(PlaneErrorAddress)
	}
	if p.storageEnabled && out != nil {
		buf := p.groupFor(block)
		off := p.blockOffset(block, page)
		copy(out[col:], buf[off+uint32(col):off+p.cfg.PageSize])
	}
	p.readLog.Row(p.id, block, page)
	return ResultOK
}

// Erase zeroes block's NOP counters and backing bytes, resets its
// last-programmed-page marker, and increments its erase count.
func (p *Plane) Erase(block uint32) Result {
	if block >= p.cfg.BlocksPerDie {
		return planeResult(PlaneErrorAddress)
	}
	p.lastProgPage[block] = 0
	for i := range p.nopCounter[block] {
		p.nopCounter[block][i] = 0
	}
	if p.storageEnabled {
		buf := p.groupFor(block)
		off := p.blockOffset(block, 0)
		for i := off; i < off+p.cfg.BlockSize(); i++ {
			buf[i] = 0
		}
	}
	p.eraseCount[block]++
	if p.eraseCount[block] >= p.cfg.Endurance {
		return planeResult(PlaneErrorWearout)
	}
	return ResultOK
}

// EraseCount returns the current erase count for block (test/reporting use).
func (p *Plane) EraseCount(block uint32) uint32 { return p.eraseCount[block] }

// LastProgrammedPage returns the highest page programmed since block's last
// erase (test/reporting use).
func (p *Plane) LastProgrammedPage(block uint32) uint32 { return p.lastProgPage[block] }

// NopCounter returns the writes-since-erase count for (block, page)
// (test/reporting use).
func (p *Plane) NopCounter(block, page uint32) uint8 { return p.nopCounter[block][page] }

// HardReset reinitializes the plane for a new device configuration, clearing
// all wear/order/backing-store state.
func (p *Plane) HardReset(cfg DeviceConfig) {
	p.cfg = cfg
	p.eraseCount = make([]uint32, cfg.BlocksPerDie)
	p.lastProgPage = make([]uint32, cfg.BlocksPerDie)
	p.nopCounter = make([][]uint8, cfg.BlocksPerDie)
	for i := range p.nopCounter {
		p.nopCounter[i] = make([]uint8, cfg.PagesPerBlock)
	}
	if p.storageEnabled {
		numGroups := (cfg.BlocksPerDie + virtualBlockGroupSize - 1) / virtualBlockGroupSize
		p.groups = make([][]byte, numGroups)
	}
}
