// entitlement.go - Policy entitlement table for reporting.
package leave

import "github.com/shopspring/decimal"

// Entitlement returns the policy-defined annual allotment for a category,
// used for reporting and display only. Deduction always operates on live
// balances, and the accrual engine's reset values are a separate table:
// notably, annual leave here is a flat 19/18/12-day figure while the
// accrual engine resets annual to zero and tops it up monthly. The two
// tables are kept independent pending product clarification.
func Entitlement(category Category, yearsWorked int) decimal.Decimal {
	switch category {
	case CategorySick:
		if yearsWorked >= 5 {
			return decimal.NewFromInt(18)
		}
		return decimal.NewFromInt(12)
	case CategoryHospital:
		return decimal.NewFromInt(60)
	case CategoryCultivation:
		return decimal.NewFromInt(7)
	case CategoryCompassionate:
		return decimal.NewFromInt(14)
	case CategoryMaternity:
		return decimal.NewFromInt(98)
	case CategoryAnnual, CategoryEmergency:
		switch {
		case yearsWorked > 10:
			return decimal.NewFromInt(19)
		case yearsWorked > 5:
			return decimal.NewFromInt(18)
		default:
			return decimal.NewFromInt(12)
		}
	default:
		return decimal.Zero
	}
}
