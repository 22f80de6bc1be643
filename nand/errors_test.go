package nand

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultOKIsZeroValue(t *testing.T) {
	assert.True(t, ResultOK.OK())
	assert.Nil(t, ResultOK.AsError())
}

func TestResultOrCombinesCodesWithinDomain(t *testing.T) {
	a := planeResult(PlaneErrorNOPViolation)
	b := planeResult(PlaneErrorWearout)
	combined := a.Or(b)
	assert.False(t, combined.OK())
	assert.True(t, combined.Is(PlaneErrorNOPViolation))
	assert.True(t, combined.Is(PlaneErrorWearout))
	assert.False(t, combined.Is(PlaneErrorInorderViolation))
	assert.Equal(t, DomainPlane, combined.Domain())
}

func TestResultOrKeepsFirstNonNoneDomain(t *testing.T) {
	combined := ResultOK.Or(dieResult(DieErrorBusy))
	assert.Equal(t, DomainDie, combined.Domain())
}

func TestResultAsErrorNonNilWhenNotOK(t *testing.T) {
	r := controllerResult(ControllerErrorUndefinedOrder)
	err := r.AsError()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "controller")
}

func TestAssertfPanicsOnViolation(t *testing.T) {
	assert.Panics(t, func() {
		assertf(false, "TestAssertfPanicsOnViolation", "deliberate failure")
	})
	assert.NotPanics(t, func() {
		assertf(true, "TestAssertfPanicsOnViolation", "never triggered")
	})
}
