package nand

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaneWriteThenReadRoundTrips(t *testing.T) {
	cfg := testCfg()
	p := NewPlane(0, cfg, true)

	data := make([]byte, cfg.PageSize)
	for i := range data {
		data[i] = byte(i)
	}
	res := p.Write(0, 1, 0, data)
	assert.True(t, res.OK())

	out := make([]byte, cfg.PageSize)
	res = p.Read(0, 1, 0, out)
	assert.True(t, res.OK())
	assert.Equal(t, data, out)
}

func TestPlaneNopViolationFlagsButStillWrites(t *testing.T) {
	cfg := testCfg()
	cfg.NOP = 1
	p := NewPlane(0, cfg, false)

	res := p.Write(0, 0, 0, nil)
	assert.True(t, res.OK())
	res = p.Write(0, 0, 0, nil)
	assert.False(t, res.OK())
	assert.True(t, res.Is(PlaneErrorNOPViolation))
}

func TestPlaneInorderViolation(t *testing.T) {
	cfg := testCfg()
	p := NewPlane(0, cfg, false)

	res := p.Write(0, 0, 3, nil)
	assert.True(t, res.OK())
	res = p.Write(0, 0, 1, nil)
	assert.True(t, res.Is(PlaneErrorInorderViolation))
}

func TestPlaneEraseResetsOrderAndNop(t *testing.T) {
	cfg := testCfg()
	p := NewPlane(0, cfg, true)

	_ = p.Write(0, 0, 5, make([]byte, cfg.PageSize))
	assert.Equal(t, uint32(5), p.LastProgrammedPage(0))

	res := p.Erase(0)
	assert.True(t, res.OK())
	assert.Equal(t, uint32(0), p.LastProgrammedPage(0))
	assert.Equal(t, uint8(0), p.NopCounter(0, 5))
	assert.Equal(t, uint32(1), p.EraseCount(0))
}

func TestPlaneWearoutAfterEndurance(t *testing.T) {
	cfg := testCfg()
	cfg.Endurance = 2
	p := NewPlane(0, cfg, false)

	assert.True(t, p.Erase(0).OK())
	res := p.Erase(0)
	assert.False(t, res.OK())
	assert.True(t, res.Is(PlaneErrorWearout))
}
