// Package nand implements a cycle-accurate timing model for a multi-die,
// multi-plane NAND flash subsystem: per-die protocol stage machine, shared-bus
// arbitration across dies, and transaction-to-stage-packet expansion.
//
// The embedder drives simulated time explicitly by calling Update(dt) on a
// Controller; nothing in this package blocks, spawns a goroutine, or owns a
// clock of its own.
package nand

// ═══════════════════════════════════════════════════════════════════════════
// STAGES
// ═══════════════════════════════════════════════════════════════════════════

// Stage identifies a step of the per-die protocol state machine. Stages below
// StageDelimiterArray are bus stages (they require the shared command/data
// bus); stages at or above it are array stages (they run inside the die and
// can overlap across dies).
type Stage uint8

const (
	StageALE Stage = iota
	StageCLE
	StageTOR
	StageTIR
	StageReadStatus
	StageResetDelta
	StageIdle
	StageBusy

	StageDelimiterArray // stages >= this run in the array, not on the bus

	StageTON
	StageTIN
	StageTINCache
	StageTINDummy
	StageTINTail
	StageNotDetermined
)

func (s Stage) String() string {
	switch s {
	case StageALE:
		return "ALE"
	case StageCLE:
		return "CLE"
	case StageTOR:
		return "TOR"
	case StageTIR:
		return "TIR"
	case StageReadStatus:
		return "READ_STATUS"
	case StageResetDelta:
		return "RESET_DELTA"
	case StageIdle:
		return "IDLE"
	case StageBusy:
		return "BUSY"
	case StageTON:
		return "TON"
	case StageTIN:
		return "TIN"
	case StageTINCache:
		return "TIN_CACHE"
	case StageTINDummy:
		return "TIN_DUMMY"
	case StageTINTail:
		return "TIN_TAIL"
	default:
		return "NOT_DETERMINED"
	}
}

// IsBusStage reports whether s requires exclusive ownership of the shared
// command/data bus (as opposed to running purely inside the die's array).
func (s Stage) IsBusStage() bool { return s < StageDelimiterArray }

// ═══════════════════════════════════════════════════════════════════════════
// COMMANDS
// ═══════════════════════════════════════════════════════════════════════════

// Command identifies a NAND protocol command latched via a CLE stage.
type Command uint8

const (
	CmdReadPage Command = iota
	CmdReadPageConf
	CmdReadMultiplaneInit
	CmdReadMultiplaneInitConf
	CmdReadMultiplaneInitFin
	CmdReadMultiplaneInitFinConf
	CmdReadMultiplane
	CmdReadMultiplaneConf
	CmdReadCacheAddrInit
	CmdReadCacheAddrInitConf
	CmdReadCache
	CmdReadMultiplaneCache
	CmdReadMultiplaneCacheDummy
	CmdReadMultiplaneCacheConf
	CmdReadInternal
	CmdReadInternalConf
	CmdReadInternalMultiplane
	CmdReadInternalMultiplaneFin
	CmdReadInternalMultiplaneFinConf
	CmdReadRandom
	CmdReadRandomConf
	CmdReadStatus

	cmdDelimiterRead // delimiter between read and program families

	CmdProgPage
	CmdProgPageConf
	CmdProgMultiplane
	CmdProgMultiplaneConf
	CmdProgMultiplaneRandom
	CmdProgMultiplaneRandomDummy
	CmdProgMultiplaneRandomDummyConf
	CmdProgMultiplaneFin
	CmdProgMultiplaneFinConf
	CmdProgMultiplaneFinRandom
	CmdProgMultiplaneFinRandomConf
	CmdProgMultiplaneCache
	CmdProgMultiplaneCacheConf
	CmdProgMultiplaneCacheFin
	CmdProgMultiplaneCacheFinConf
	CmdProgCache
	CmdProgCacheConf
	CmdProgRandom
	CmdProgRandomFin
	CmdProgRandomFinConf
	CmdProgInternal
	CmdProgInternalConf
	CmdProgInternalMultiplane
	CmdProgInternalMultiplaneConf
	CmdProgInternalMultiplaneFin
	CmdProgInternalMultiplaneFinConf
	CmdBlockErase
	CmdBlockEraseConf
	CmdBlockMultiplaneErase
	CmdBlockMultiplaneEraseFin
	CmdBlockMultiplaneEraseFinConf
	CmdReset
	CmdNotDetermined
)

// IsReadFamily reports whether cmd belongs to the read command family.
func (c Command) IsReadFamily() bool { return c < cmdDelimiterRead }

// IsProgFamily reports whether cmd belongs to the program command family.
func (c Command) IsProgFamily() bool {
	return c > cmdDelimiterRead && c < CmdBlockErase
}

// IsEraseFamily reports whether cmd belongs to the erase command family.
func (c Command) IsEraseFamily() bool {
	return c == CmdBlockErase || c == CmdBlockEraseConf ||
		c == CmdBlockMultiplaneErase || c == CmdBlockMultiplaneEraseFin ||
		c == CmdBlockMultiplaneEraseFinConf
}

// IsConfirm reports whether cmd is the second ("confirm") command of a
// two-command base→confirm sequence.
func (c Command) IsConfirm() bool {
	switch c {
	case CmdReadPageConf, CmdReadMultiplaneInitConf, CmdReadMultiplaneInitFinConf,
		CmdReadMultiplaneConf, CmdReadCacheAddrInitConf, CmdReadMultiplaneCacheConf,
		CmdReadInternalConf, CmdReadInternalMultiplaneFinConf, CmdReadRandomConf,
		CmdProgPageConf, CmdProgMultiplaneConf, CmdProgMultiplaneRandomDummyConf,
		CmdProgMultiplaneFinConf, CmdProgMultiplaneFinRandomConf,
		CmdProgMultiplaneCacheConf, CmdProgMultiplaneCacheFinConf, CmdProgCacheConf,
		CmdProgRandomFinConf, CmdProgInternalConf, CmdProgInternalMultiplaneConf,
		CmdProgInternalMultiplaneFinConf, CmdBlockEraseConf, CmdBlockMultiplaneEraseFinConf:
		return true
	}
	return false
}

// IsInternal reports whether cmd is part of an internal data-movement
// (copyback) sequence, which never touches the host bus for data transfer.
func (c Command) IsInternal() bool {
	switch c {
	case CmdReadInternal, CmdReadInternalConf, CmdReadInternalMultiplane,
		CmdReadInternalMultiplaneFin, CmdReadInternalMultiplaneFinConf,
		CmdProgInternal, CmdProgInternalConf, CmdProgInternalMultiplane,
		CmdProgInternalMultiplaneConf, CmdProgInternalMultiplaneFin,
		CmdProgInternalMultiplaneFinConf:
		return true
	}
	return false
}

// IsMultiplaneNonFin reports whether cmd is a non-final sub-command of a
// multi-plane (Nx) sequence, i.e. one that increments the per-die
// nx_command_count without yet triggering the array operation.
func (c Command) IsMultiplaneNonFin() bool {
	switch c {
	case CmdReadMultiplaneInit, CmdReadMultiplaneInitConf, CmdReadMultiplane, CmdReadMultiplaneConf,
		CmdProgMultiplane, CmdProgMultiplaneConf, CmdProgMultiplaneRandom,
		CmdProgMultiplaneRandomDummy, CmdProgMultiplaneRandomDummyConf,
		CmdProgMultiplaneCache, CmdProgMultiplaneCacheConf,
		CmdBlockMultiplaneErase:
		return true
	}
	return false
}

// IsMultiplaneFin reports whether cmd is the terminal ("FIN") sub-command of
// a multi-plane sequence.
func (c Command) IsMultiplaneFin() bool {
	switch c {
	case CmdReadMultiplaneInitFin, CmdReadMultiplaneInitFinConf,
		CmdReadInternalMultiplaneFin, CmdReadInternalMultiplaneFinConf,
		CmdProgMultiplaneFin, CmdProgMultiplaneFinConf,
		CmdProgMultiplaneFinRandom, CmdProgMultiplaneFinRandomConf,
		CmdProgMultiplaneCacheFin, CmdProgMultiplaneCacheFinConf,
		CmdProgInternalMultiplaneFin, CmdProgInternalMultiplaneFinConf,
		CmdBlockMultiplaneEraseFin, CmdBlockMultiplaneEraseFinConf:
		return true
	}
	return false
}

// IsCache reports whether cmd belongs to a cache-mode sequence.
func (c Command) IsCache() bool {
	switch c {
	case CmdReadCacheAddrInit, CmdReadCacheAddrInitConf, CmdReadCache,
		CmdReadMultiplaneCache, CmdReadMultiplaneCacheDummy, CmdReadMultiplaneCacheConf,
		CmdProgMultiplaneCache, CmdProgMultiplaneCacheConf,
		CmdProgMultiplaneCacheFin, CmdProgMultiplaneCacheFinConf,
		CmdProgCache, CmdProgCacheConf:
		return true
	}
	return false
}

// IsRandom reports whether cmd uses a random column offset rather than the
// default zero offset.
func (c Command) IsRandom() bool {
	switch c {
	case CmdReadRandom, CmdReadRandomConf, CmdProgRandom, CmdProgRandomFin, CmdProgRandomFinConf,
		CmdProgMultiplaneRandom, CmdProgMultiplaneRandomDummy, CmdProgMultiplaneRandomDummyConf,
		CmdProgMultiplaneFinRandom, CmdProgMultiplaneFinRandomConf:
		return true
	}
	return false
}

// IsRandomNonFin reports whether cmd is a random-column program command that
// terminates at TIR without continuing to a confirm/array-write stage. The
// FIN variants (CmdProgRandomFin, CmdProgMultiplaneFinRandom) are excluded:
// they fall through to their confirm CLE and the TIN array write.
func (c Command) IsRandomNonFin() bool {
	return c == CmdProgRandom || c == CmdProgMultiplaneRandom
}

// ═══════════════════════════════════════════════════════════════════════════
// FSM STATE / DC REGION / TRANSACTION OP
// ═══════════════════════════════════════════════════════════════════════════

// FSMState indexes the per-die accumulated-time-by-stage table.
type FSMState uint8

const (
	FSMALE FSMState = iota
	FSMCLE
	FSMTIR
	FSMTOR
	FSMTIN
	FSMTON
	FSMErase
	fsmStateCount
)

// DCRegion indexes the per-die accumulated-time-by-power-region table.
type DCRegion uint8

const (
	DCRead DCRegion = iota
	DCProg
	DCErase
	DCStandby
	DCLeakage
	dcRegionCount
)

// TransOp identifies the logical operation a Transaction requests.
type TransOp uint8

const (
	OpRead TransOp = iota
	OpReadRandom
	OpReadCache
	OpReadMultiplane
	OpReadMultiplaneRandom
	OpProg
	OpProgRandom
	OpProgCache
	OpProgMultiplane
	OpProgMultiplaneRandom
	OpProgMultiplaneCache
	OpInternalDataMovement
	OpInternalDataMovementMultiplane
	OpBlockErase
	OpBlockEraseMultiplane
	OpNotDetermined
)

// ═══════════════════════════════════════════════════════════════════════════
// DEVICE CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════

// DeviceConfig is the immutable-once-set device geometry and bit layout. All
// fields are derived once at construction and never mutated afterward; the
// simulator only ever reads through it.
type DeviceConfig struct {
	PageSize      uint32 // bytes per page
	PagesPerBlock uint32
	BlocksPerDie  uint32 // blocks per plane, per spec.md terminology
	NumsPlane     uint32
	NumsDie       uint32
	NumsLun       uint8
	IoPins        uint32 // I/O pin width, in bits
	NOP           uint32 // max writes per page between erases
	Endurance     uint32 // max erases per block
	ClockPeriodPs uint64 // picoseconds per embedder clock cycle

	// Bit widths of the packed semi-physical address, derived once.
	PageBits  uint
	PlaneBits uint
	BlockBits uint
	DieBits   uint
}

// IoBytes returns the bus transfer width in bytes (pins/8).
func (c DeviceConfig) IoBytes() uint32 { return c.IoPins / 8 }

// BlockSize returns the byte size of one block (PageSize * PagesPerBlock).
func (c DeviceConfig) BlockSize() uint32 { return c.PageSize * c.PagesPerBlock }

// DefaultDeviceConfig returns a DeviceConfig with the address bit widths from
// original_source/nfs/TypeSystem.h (8/4/16/4 for page/plane/block/die) and the
// geometry left at the zero value for the caller to fill in.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		PageBits:  8,
		PlaneBits: 4,
		BlockBits: 16,
		DieBits:   4,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// TRANSACTION / STAGE PACKET
// ═══════════════════════════════════════════════════════════════════════════

// Transaction is the host-level I/O request submitted to a Controller.
type Transaction struct {
	HostTransID uint32
	Lun         uint8
	Op          TransOp
	Addr        Address // physical address
	DestAddr    Address // target of an internal data-movement op
	ByteOff     uint32
	NumBytes    uint32
	Data        []byte
	StatusData  *uint32
	AutoPlane   bool     // controller generates plane addresses by its own round-robin rule
	PlaneCount  uint32   // planes touched by a multi-plane op; 0 means every plane
	PlaneAddrs  []Address // manual plane addressing: explicit per-plane addresses, overrides AutoPlane
	IsLastNxSub bool     // last sub-command of a cache/random multi-sub-command chain
}

// StagePacket is one protocol step queued on a Logical Unit's per-die bus
// queue. The data/status pointers may be nil in no-storage mode.
type StagePacket struct {
	StageID            uint32
	Command            Command
	Data               []byte
	StatusData         *uint32
	Row                uint32
	Col                uint16
	RandomBytes         uint32
	ArrivalCycle        uint64
	IsLastOfTransaction bool
}

const sentinel32 = ^uint32(0)
const sentinelU16 = ^uint16(0)
