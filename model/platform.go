package model

import (
	"fmt"
	"strings"
)

// MinMassKg is the floor applied when an operator sets the vehicle mass.
const MinMassKg = 0.05

// WeightClass is the operator-facing mass preset.
type WeightClass int

const (
	WeightLight WeightClass = iota
	WeightMedium
	WeightHeavy
)

// MassKg returns the nominal mass for the class.
func (w WeightClass) MassKg() float64 {
	switch w {
	case WeightLight:
		return 0.25
	case WeightHeavy:
		return 3.5
	default:
		return 1.0
	}
}

func (w WeightClass) String() string {
	switch w {
	case WeightLight:
		return "light"
	case WeightMedium:
		return "medium"
	case WeightHeavy:
		return "heavy"
	default:
		return fmt.Sprintf("weight(%d)", int(w))
	}
}

// ParseWeightClass accepts "light", "medium" or "heavy".
func ParseWeightClass(s string) (WeightClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "light":
		return WeightLight, nil
	case "medium", "":
		return WeightMedium, nil
	case "heavy":
		return WeightHeavy, nil
	default:
		return WeightMedium, fmt.Errorf("unknown weight class %q", s)
	}
}

// VehicleDefinition describes the physical airframe being tracked.
type VehicleDefinition struct {
	ID            string
	Name          string
	Weight        WeightClass
	MassKg        float64
	BottomOffsetM float64
}

// ClampMass applies the operator mass floor.
func ClampMass(kg float64) float64 {
	if kg < MinMassKg {
		return MinMassKg
	}
	return kg
}
