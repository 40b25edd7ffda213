package leave_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/leave-engine/leave"
)

func TestEntitlement_AnnualTiersAreStrict(t *testing.T) {
	// Exactly 5 and exactly 10 years stay on the lower tier.
	cases := []struct {
		years int
		want  string
	}{
		{0, "12"},
		{5, "12"},
		{6, "18"},
		{10, "18"},
		{11, "19"},
	}
	for _, tc := range cases {
		got := leave.Entitlement(leave.CategoryAnnual, tc.years)
		assert.True(t, got.Equal(d(tc.want)), "years=%d want %s got %s", tc.years, tc.want, got)

		// Emergency leave shares the annual table.
		assert.True(t, leave.Entitlement(leave.CategoryEmergency, tc.years).Equal(d(tc.want)))
	}
}

func TestEntitlement_SickUsesInclusiveBoundary(t *testing.T) {
	assert.True(t, leave.Entitlement(leave.CategorySick, 4).Equal(d("12")))
	assert.True(t, leave.Entitlement(leave.CategorySick, 5).Equal(d("18")))
}

func TestEntitlement_FixedCategories(t *testing.T) {
	assert.True(t, leave.Entitlement(leave.CategoryHospital, 0).Equal(d("60")))
	assert.True(t, leave.Entitlement(leave.CategoryCultivation, 0).Equal(d("7")))
	assert.True(t, leave.Entitlement(leave.CategoryCompassionate, 0).Equal(d("14")))
	assert.True(t, leave.Entitlement(leave.CategoryMaternity, 0).Equal(d("98")))
}

func TestEntitlement_CreditCategoryIsZero(t *testing.T) {
	assert.True(t, leave.Entitlement(leave.CategoryWorkingOnOff, 10).IsZero())
}
