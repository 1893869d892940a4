package leave_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, leave.CategoryDefault, leave.Classify("Total Leave"))
	assert.Equal(t, leave.CategoryDefault, leave.Classify("  annual leave "))
	assert.Equal(t, leave.CategoryDefault, leave.Classify("TOTAL"))
	assert.Equal(t, leave.CategoryCompOff, leave.Classify("Compensatory Off"))
	assert.Equal(t, leave.CategoryBirthday, leave.Classify("Birthday Leave"))
	assert.Equal(t, leave.CategoryStandard, leave.Classify("Sick Leave"))
}

func TestNewRegistry_Defaults(t *testing.T) {
	reg, err := leave.NewRegistry(leave.DefaultLeaveTypes())
	require.NoError(t, err)

	assert.Equal(t, "annual", reg.Default().ID)

	sick, err := reg.Lookup("sick")
	require.NoError(t, err)
	assert.Equal(t, "sick", reg.LedgerTypeFor(sick))

	casual, err := reg.Lookup("casual")
	require.NoError(t, err)
	assert.Equal(t, "annual", reg.LedgerTypeFor(casual), "standard types without their own row pool into the default bucket")

	bday, err := reg.Lookup("birthday")
	require.NoError(t, err)
	assert.Equal(t, leave.CategoryBirthday, bday.Category)
	assert.False(t, bday.RequiresApproval)

	_, err = reg.Lookup("sabbatical")
	assert.True(t, generic.IsNotFound(err))

	names := make([]string, 0)
	for _, lt := range reg.List() {
		names = append(names, lt.Name)
	}
	assert.IsIncreasing(t, names)
}

func TestNewRegistry_RequiresOneDefault(t *testing.T) {
	_, err := leave.NewRegistry([]leave.LeaveType{{ID: "sick", Name: "Sick Leave"}})
	assert.True(t, errors.Is(err, generic.ErrNoDefaultBucket))

	_, err = leave.NewRegistry([]leave.LeaveType{
		{ID: "annual", Name: "Annual Leave"},
		{ID: "total", Name: "Total Leave"},
	})
	assert.True(t, generic.IsClientError(err))
}

func TestRegister_Normalises(t *testing.T) {
	reg, err := leave.NewRegistry(leave.DefaultLeaveTypes())
	require.NoError(t, err)

	lt, err := reg.Register(leave.LeaveType{ID: "co2", Name: "Comp Off", OwnBalance: true})
	require.NoError(t, err)
	assert.Equal(t, leave.CategoryCompOff, lt.Category)
	assert.False(t, lt.OwnBalance)

	_, err = reg.Register(leave.LeaveType{ID: "x", Name: "X", MaxDaysPerYear: days("-1")})
	assert.True(t, generic.IsClientError(err))

	_, err = reg.Register(leave.LeaveType{ID: "y", Name: "Y", Category: "bonus"})
	assert.True(t, generic.IsClientError(err))
}

func TestRegister_DefaultBucketKeepsItsCategory(t *testing.T) {
	reg, err := leave.NewRegistry(leave.DefaultLeaveTypes())
	require.NoError(t, err)

	_, err = reg.Register(leave.LeaveType{ID: "annual", Name: "Annual Leave", Category: leave.CategoryStandard})
	assert.True(t, generic.IsClientError(err))
	assert.Equal(t, "annual", reg.Default().ID)
	assert.Equal(t, leave.CategoryDefault, reg.Default().Category)

	renamed, err := reg.Register(leave.LeaveType{ID: "annual", Name: "Total Leave", Category: leave.CategoryDefault})
	require.NoError(t, err)
	assert.Equal(t, "Total Leave", renamed.Name)
}

func TestResolve_LeavesRegistryUntouched(t *testing.T) {
	reg, err := leave.NewRegistry(leave.DefaultLeaveTypes())
	require.NoError(t, err)

	lt, err := reg.Resolve(leave.LeaveType{ID: "wfh", Name: "Work From Home"})
	require.NoError(t, err)
	assert.Equal(t, leave.CategoryStandard, lt.Category)

	_, ok := reg.Get("wfh")
	assert.False(t, ok)
}
