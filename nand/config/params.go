// Package config loads the NAND timing/DC/system parameter table that the
// nand package's core treats as an injected, immutable value — spec.md
// explicitly keeps parameter-table loading out of the simulator core's scope
// and specifies it only through the parameter names in spec.md §6. This
// package is that external interface's concrete implementation, backed by
// TOML rather than the original's .ini format (grounded in the broad TOML
// usage across the retrieved example pack; no pack repo shows an INI reader).
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// VariationMode selects how Params.ArrayTime resolves worst-case vs.
// typical-value array timings, per spec.md §6.
type VariationMode uint8

const (
	// VariationDefault uses typical timing for page offsets below 4 and for
	// every page whose offset modulo 4 is 0 or 1, worst-case otherwise — the
	// charge-multilevel variation model.
	VariationDefault VariationMode = iota
	// VariationAlwaysWorst always uses the worst-case timing value.
	VariationAlwaysWorst
	// VariationAlwaysTypical always uses the typical timing value.
	VariationAlwaysTypical
	// VariationCMLC is the "CMLC-style" mode: typical for the first/last two
	// pages of a block and every even page in between.
	VariationCMLC
)

// Timing holds every named timing parameter from spec.md §6, in picoseconds.
type Timing struct {
	TADL uint64 `toml:"tADL"`
	TALH uint64 `toml:"tALH"`
	TALS uint64 `toml:"tALS"`
	TCH  uint64 `toml:"tCH"`
	TCLH uint64 `toml:"tCLH"`
	TCLS uint64 `toml:"tCLS"`
	TCS  uint64 `toml:"tCS"`
	TDH  uint64 `toml:"tDH"`
	TDS  uint64 `toml:"tDS"`
	TWC  uint64 `toml:"tWC"`
	TWH  uint64 `toml:"tWH"`
	TWP  uint64 `toml:"tWP"`
	TWW  uint64 `toml:"tWW"`
	TAR  uint64 `toml:"tAR"`
	TCEA uint64 `toml:"tCEA"`
	TCHZ uint64 `toml:"tCHZ"`
	TCOH uint64 `toml:"tCOH"`

	TDCBSYR1 uint64 `toml:"tDCBSYR1"`
	TDCBSYR2 uint64 `toml:"tDCBSYR2"`
	TIR      uint64 `toml:"tIR"`
	TR       uint64 `toml:"tR"`
	TRC      uint64 `toml:"tRC"`
	TREA     uint64 `toml:"tREA"`
	TREH     uint64 `toml:"tREH"`
	THOH     uint64 `toml:"tHOH"`
	TRHZ     uint64 `toml:"tRHZ"`
	TRLOH    uint64 `toml:"tRLOH"`
	TRP      uint64 `toml:"tRP"`
	TRR      uint64 `toml:"tRR"`
	TRST     uint64 `toml:"tRST"`
	TWB      uint64 `toml:"tWB"`
	TWHR     uint64 `toml:"tWHR"`
	TBERS    uint64 `toml:"tBERS"`
	TCBSY    uint64 `toml:"tCBSY"`
	TDBSY    uint64 `toml:"tDBSY"`
	TPROG    uint64 `toml:"tPROG"`

	// Typical-value variants, consulted by ArrayTime per VariationMode.
	IMVProg     uint64 `toml:"IMV_tPROG"`
	IMVDCBSYR1  uint64 `toml:"IMV_tDCBSYR1"`
	IMVDCBSYR2  uint64 `toml:"IMV_tDCBSYR2"`
	IMVBers     uint64 `toml:"IMV_tBERS"`
	IMVCbsy     uint64 `toml:"IMV_tCBSY"`
	IMVDbsy     uint64 `toml:"IMV_tDBSY"`
}

// DC holds the DC/power parameters of spec.md §6. These are not consumed by
// the timing core (which only accumulates per-DC-region *time*, per spec.md
// §3) but are loaded and exposed for downstream energy estimation, per
// SPEC_FULL.md §12.
type DC struct {
	VCC  uint32 `toml:"VCC"`
	ICC1 uint32 `toml:"ICC1"`
	ICC2 uint32 `toml:"ICC2"`
	ICC3 uint32 `toml:"ICC3"`
	ISB1 uint32 `toml:"ISB1"`
	ISB2 uint32 `toml:"ISB2"`
	ILI  uint32 `toml:"ILI"`
	ILO  uint32 `toml:"ILO"`
}

// System holds the system/geometry parameters of spec.md §6.
type System struct {
	NOP           uint32 `toml:"NOP"`
	NumsPlane     uint32 `toml:"NUMS_PLANE"`
	NumsDie       uint32 `toml:"NUMS_DIE"`
	NumsBlocks    uint32 `toml:"NUMS_BLOCKS"`
	NumsPages     uint32 `toml:"NUMS_PAGES"`
	NumsPgSize    uint32 `toml:"NUMS_PGSIZE"`
	NumsSpareSize uint32 `toml:"NUMS_SPARESIZE"`
	NumsIOPins    uint32 `toml:"NUMS_IOPINS"`
	MaxEraseCnt   uint32 `toml:"MAX_ERASE_CNT"`
	ClockPeriodPs uint64 `toml:"CLOCK_PERIODS"`
}

// Env holds the environment/behavior flags of spec.md §6.
type Env struct {
	Variation     VariationMode `toml:"VARIATION_MODE"`
	NoIdleCycles  bool          `toml:"NO_IDLE_CYCLES"`
	EnableLogs    []string      `toml:"ENABLE_LOGS"`
}

// Params is the full injected, immutable parameter table. Once loaded it is
// never mutated — every nand package component that needs a timing or
// geometry value reads it through this value, never writes back to it.
type Params struct {
	Timing Timing `toml:"timing"`
	DC     DC     `toml:"dc"`
	System System `toml:"system"`
	Env    Env    `toml:"env"`
}

// Load reads a Params table from a TOML file at path.
func Load(path string) (Params, error) {
	var p Params
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Params{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return p, nil
}

// LoadBytes reads a Params table from raw TOML content, e.g. an embedded
// default configuration.
func LoadBytes(data []byte) (Params, error) {
	var p Params
	if _, err := toml.Decode(string(data), &p); err != nil {
		return Params{}, fmt.Errorf("config: decode: %w", err)
	}
	return p, nil
}

// MustLoad is Load but panics on error; intended for cmd/nandsim's default
// configuration path and tests, never for library code on a hot path.
func MustLoad(path string) Params {
	p, err := Load(path)
	if err != nil {
		panic(err)
	}
	return p
}

// ArrayTime resolves an array-operation timing parameter to either its
// worst-case or typical value, depending on p.Env.Variation and the page
// offset within the block, per spec.md §6:
//
//   - VariationAlwaysWorst:   always worst.
//   - VariationAlwaysTypical: always typical.
//   - VariationCMLC:          typical when page < 2, page >= pagesPerBlock-2,
//     or page is even.
//   - VariationDefault:       typical when page < 4 or page%4 is 0 or 1;
//     worst otherwise.
func (p Params) ArrayTime(page, pagesPerBlock uint32, worst, typical uint64) uint64 {
	switch p.Env.Variation {
	case VariationAlwaysWorst:
		return worst
	case VariationAlwaysTypical:
		return typical
	case VariationCMLC:
		if page < 2 || page >= pagesPerBlock-2 || page%2 == 0 {
			return typical
		}
		return worst
	default: // VariationDefault
		if page < 4 || page%4 == 0 || page%4 == 1 {
			return typical
		}
		return worst
	}
}

// TProg returns the program timing for page, resolved per the variation mode.
func (p Params) TProg(page, pagesPerBlock uint32) uint64 {
	return p.ArrayTime(page, pagesPerBlock, p.Timing.TPROG, p.Timing.IMVProg)
}

// TBers returns the erase timing, resolved per the variation mode. Erase
// operates on a whole block, so it is keyed off page 0 of that block.
func (p Params) TBers(pagesPerBlock uint32) uint64 {
	return p.ArrayTime(0, pagesPerBlock, p.Timing.TBERS, p.Timing.IMVBers)
}

// TDCBSYR1 returns the first-cache-read busy timing, resolved per the
// variation mode.
func (p Params) TDCBSYR1(page, pagesPerBlock uint32) uint64 {
	return p.ArrayTime(page, pagesPerBlock, p.Timing.TDCBSYR1, p.Timing.IMVDCBSYR1)
}

// TDCBSYR2 returns the subsequent-cache-read busy timing, resolved per the
// variation mode.
func (p Params) TDCBSYR2(page, pagesPerBlock uint32) uint64 {
	return p.ArrayTime(page, pagesPerBlock, p.Timing.TDCBSYR2, p.Timing.IMVDCBSYR2)
}

// TCbsy returns the cache-mode busy timing, resolved per the variation mode.
func (p Params) TCbsy(page, pagesPerBlock uint32) uint64 {
	return p.ArrayTime(page, pagesPerBlock, p.Timing.TCBSY, p.Timing.IMVCbsy)
}

// TDbsy returns the dummy-busy timing, resolved per the variation mode.
func (p Params) TDbsy(page, pagesPerBlock uint32) uint64 {
	return p.ArrayTime(page, pagesPerBlock, p.Timing.TDBSY, p.Timing.IMVDbsy)
}
