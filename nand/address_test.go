package nand

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCfg() DeviceConfig {
	cfg := DefaultDeviceConfig()
	cfg.PageSize = 512
	cfg.PagesPerBlock = 8
	cfg.BlocksPerDie = 4
	cfg.NumsPlane = 2
	cfg.NumsDie = 2
	cfg.IoPins = 8
	cfg.NOP = 1
	cfg.Endurance = 100
	cfg.ClockPeriodPs = 1
	return cfg
}

func TestComposeAndParseAddress(t *testing.T) {
	cfg := testCfg()
	addr := ComposeAddress(cfg, 2, 7, 1, 5)
	assert.Equal(t, uint32(5), addr.Page(cfg))
	assert.Equal(t, uint32(1), addr.Plane(cfg))
	assert.Equal(t, uint32(7), addr.Block(cfg))
	assert.Equal(t, uint32(2), addr.Die(cfg))
}

func TestWithPlanePreservesOtherFields(t *testing.T) {
	cfg := testCfg()
	addr := ComposeAddress(cfg, 1, 3, 0, 4)
	moved := addr.WithPlane(cfg, 1)
	assert.Equal(t, uint32(1), moved.Plane(cfg))
	assert.Equal(t, uint32(3), moved.Block(cfg))
	assert.Equal(t, uint32(4), moved.Page(cfg))
	assert.Equal(t, uint32(1), moved.Die(cfg))
}

func TestWithPageBumpsOnlyPageField(t *testing.T) {
	cfg := testCfg()
	addr := ComposeAddress(cfg, 0, 2, 1, 3)
	next := addr.WithPage(cfg, 4)
	assert.Equal(t, uint32(4), next.Page(cfg))
	assert.Equal(t, uint32(1), next.Plane(cfg))
	assert.Equal(t, uint32(2), next.Block(cfg))
}

func TestMaskClampsToFieldWidth(t *testing.T) {
	cfg := testCfg()
	// Plane field is 4 bits wide; a value beyond that range wraps via mask.
	addr := ComposeAddress(cfg, 0, 0, 31, 0)
	assert.Equal(t, uint32(31)&mask(cfg.PlaneBits), addr.Plane(cfg))
}
