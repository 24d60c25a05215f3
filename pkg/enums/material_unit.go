package enums

import "fmt"

// MaterialUnit is the unit a material line is quoted and committed in.
type MaterialUnit string

const (
	MaterialUnitKilogram MaterialUnit = "kg"
	MaterialUnitGram     MaterialUnit = "g"
	MaterialUnitLiter    MaterialUnit = "l"
	MaterialUnitMillil   MaterialUnit = "ml"
	MaterialUnitPiece    MaterialUnit = "unit"
	MaterialUnitBox      MaterialUnit = "box"
)

var validMaterialUnits = []MaterialUnit{
	MaterialUnitKilogram,
	MaterialUnitGram,
	MaterialUnitLiter,
	MaterialUnitMillil,
	MaterialUnitPiece,
	MaterialUnitBox,
}

// String implements fmt.Stringer.
func (u MaterialUnit) String() string {
	return string(u)
}

// IsValid reports whether the value is a known MaterialUnit.
func (u MaterialUnit) IsValid() bool {
	for _, candidate := range validMaterialUnits {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseMaterialUnit converts raw input into a MaterialUnit.
func ParseMaterialUnit(value string) (MaterialUnit, error) {
	for _, candidate := range validMaterialUnits {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid material unit %q", value)
}
