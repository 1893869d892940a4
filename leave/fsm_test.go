package leave_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func TestCheckTransition(t *testing.T) {
	legal := [][2]leave.Status{
		{leave.StatusPending, leave.StatusApproved},
		{leave.StatusPending, leave.StatusRejected},
		{leave.StatusPending, leave.StatusCancelled},
		{leave.StatusApproved, leave.StatusWithdrawn},
		{leave.StatusApproved, leave.StatusRejected},
		{leave.StatusApproved, leave.StatusCancelled},
		{leave.StatusRejected, leave.StatusApproved},
	}
	for _, tr := range legal {
		assert.NoError(t, leave.CheckTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	illegal := [][2]leave.Status{
		{leave.StatusPending, leave.StatusWithdrawn},
		{leave.StatusWithdrawn, leave.StatusApproved},
		{leave.StatusCancelled, leave.StatusApproved},
		{leave.StatusRejected, leave.StatusWithdrawn},
	}
	for _, tr := range illegal {
		err := leave.CheckTransition(tr[0], tr[1])
		assert.True(t, errors.Is(err, generic.ErrIllegalTransition), "%s -> %s", tr[0], tr[1])
		assert.True(t, generic.IsConflict(err))
	}
}

func TestEffectOf(t *testing.T) {
	assert.Equal(t, leave.EffectDeduct, leave.EffectOf(leave.StatusPending, leave.StatusApproved))
	assert.Equal(t, leave.EffectDeduct, leave.EffectOf(leave.StatusRejected, leave.StatusApproved))
	assert.Equal(t, leave.EffectRestore, leave.EffectOf(leave.StatusApproved, leave.StatusWithdrawn))
	assert.Equal(t, leave.EffectRestore, leave.EffectOf(leave.StatusApproved, leave.StatusRejected))
	assert.Equal(t, leave.EffectRestore, leave.EffectOf(leave.StatusApproved, leave.StatusCancelled))
	assert.Equal(t, leave.EffectNone, leave.EffectOf(leave.StatusPending, leave.StatusRejected))
	assert.Equal(t, leave.EffectNone, leave.EffectOf(leave.StatusApproved, leave.StatusApproved))
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, leave.StatusWithdrawn.Terminal())
	assert.True(t, leave.StatusCancelled.Terminal())
	assert.False(t, leave.StatusRejected.Terminal())
	assert.False(t, leave.Status("archived").Valid())
}
