package enums

import "fmt"

// AdjustmentReason classifies why on-hand stock changed.
type AdjustmentReason string

const (
	AdjustmentReasonRestock      AdjustmentReason = "restock"
	AdjustmentReasonShrinkage    AdjustmentReason = "shrinkage"
	AdjustmentReasonDamage       AdjustmentReason = "damage"
	AdjustmentReasonRecount      AdjustmentReason = "recount"
	AdjustmentReasonReturn       AdjustmentReason = "return"
	AdjustmentReasonCorrection   AdjustmentReason = "correction"
	AdjustmentReasonInitialStock AdjustmentReason = "initial_stock"
	AdjustmentReasonOther        AdjustmentReason = "other"
)

var validAdjustmentReasons = []AdjustmentReason{
	AdjustmentReasonRestock,
	AdjustmentReasonShrinkage,
	AdjustmentReasonDamage,
	AdjustmentReasonRecount,
	AdjustmentReasonReturn,
	AdjustmentReasonCorrection,
	AdjustmentReasonInitialStock,
	AdjustmentReasonOther,
}

// String implements fmt.Stringer.
func (r AdjustmentReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known AdjustmentReason.
func (r AdjustmentReason) IsValid() bool {
	for _, candidate := range validAdjustmentReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAdjustmentReason converts raw input into an AdjustmentReason.
func ParseAdjustmentReason(value string) (AdjustmentReason, error) {
	for _, candidate := range validAdjustmentReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid adjustment reason %q", value)
}
