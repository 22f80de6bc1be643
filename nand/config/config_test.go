package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[timing]
tPROG = 700000
IMV_tPROG = 500000
tBERS = 2000000
IMV_tBERS = 1500000

[system]
NOP = 1
NUMS_PLANE = 2
NUMS_DIE = 2
NUMS_BLOCKS = 4
NUMS_PAGES = 128
NUMS_PGSIZE = 8192
NUMS_IOPINS = 8
MAX_ERASE_CNT = 1000
CLOCK_PERIODS = 1

[env]
VARIATION_MODE = 0
`

func TestLoadBytesPopulatesFields(t *testing.T) {
	p, err := LoadBytes([]byte(sampleTOML))
	require.NoError(t, err)
	assert.Equal(t, uint64(700000), p.Timing.TPROG)
	assert.Equal(t, uint32(2), p.System.NumsPlane)
	assert.Equal(t, uint32(8192), p.System.NumsPgSize)
	assert.Equal(t, VariationDefault, p.Env.Variation)
}

func TestLoadBytesRejectsMalformedTOML(t *testing.T) {
	_, err := LoadBytes([]byte("not = [valid"))
	assert.Error(t, err)
}

func TestArrayTimeDefaultVariation(t *testing.T) {
	p := Params{Env: Env{Variation: VariationDefault}}
	// page 0: low page offset -> typical.
	assert.Equal(t, uint64(5), p.ArrayTime(0, 128, 10, 5))
	// page 4: 4%4==0 -> typical.
	assert.Equal(t, uint64(5), p.ArrayTime(4, 128, 10, 5))
	// page 6: 6%4==2 -> worst.
	assert.Equal(t, uint64(10), p.ArrayTime(6, 128, 10, 5))
}

func TestArrayTimeAlwaysWorstAndTypical(t *testing.T) {
	worstP := Params{Env: Env{Variation: VariationAlwaysWorst}}
	assert.Equal(t, uint64(10), worstP.ArrayTime(99, 128, 10, 5))

	typicalP := Params{Env: Env{Variation: VariationAlwaysTypical}}
	assert.Equal(t, uint64(5), typicalP.ArrayTime(99, 128, 10, 5))
}

func TestArrayTimeCMLCVariation(t *testing.T) {
	p := Params{Env: Env{Variation: VariationCMLC}}
	assert.Equal(t, uint64(5), p.ArrayTime(0, 128, 10, 5))    // page < 2
	assert.Equal(t, uint64(5), p.ArrayTime(127, 128, 10, 5))  // page >= pagesPerBlock-2
	assert.Equal(t, uint64(5), p.ArrayTime(4, 128, 10, 5))    // even
	assert.Equal(t, uint64(10), p.ArrayTime(5, 128, 10, 5))   // odd, interior
}

func TestTProgAndTBersConvenienceWrappers(t *testing.T) {
	p := Params{
		Timing: Timing{TPROG: 700, IMVProg: 500, TBERS: 2000, IMVBers: 1500},
		Env:    Env{Variation: VariationAlwaysWorst},
	}
	assert.Equal(t, uint64(700), p.TProg(10, 128))
	assert.Equal(t, uint64(2000), p.TBers(128))
}
