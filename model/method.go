package model

import (
	"fmt"
	"strings"
)

// NeutralizationMethod is how the vehicle is brought down.
type NeutralizationMethod int

const (
	MethodMotorCutoff NeutralizationMethod = iota
	MethodPartialThrustLoss
	MethodExplosiveDisable
	MethodTetheredCapture
)

func (m NeutralizationMethod) String() string {
	switch m {
	case MethodMotorCutoff:
		return "motor_cutoff"
	case MethodPartialThrustLoss:
		return "partial_thrust_loss"
	case MethodExplosiveDisable:
		return "explosive_disable"
	case MethodTetheredCapture:
		return "tethered_capture"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseNeutralizationMethod parses the names produced by String.
func ParseNeutralizationMethod(s string) (NeutralizationMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "motor_cutoff", "":
		return MethodMotorCutoff, nil
	case "partial_thrust_loss":
		return MethodPartialThrustLoss, nil
	case "explosive_disable":
		return MethodExplosiveDisable, nil
	case "tethered_capture":
		return MethodTetheredCapture, nil
	default:
		return MethodMotorCutoff, fmt.Errorf("unknown neutralization method %q", s)
	}
}

// MethodProfile scales the ballistic result for a neutralization method.
// The zero-adjustment profile is the motor cutoff one.
type MethodProfile struct {
	HorizontalVelocityScale float64
	TimeScale               float64
	EnergyScale             float64
	ExtraUncertaintyM       float64
}

// Profile returns the placeholder scaling for the method.
func (m NeutralizationMethod) Profile() MethodProfile {
	switch m {
	case MethodPartialThrustLoss:
		return MethodProfile{HorizontalVelocityScale: 0.8, TimeScale: 1.25, EnergyScale: 1, ExtraUncertaintyM: 5}
	case MethodExplosiveDisable:
		return MethodProfile{HorizontalVelocityScale: 1.2, TimeScale: 1, EnergyScale: 1, ExtraUncertaintyM: 25}
	case MethodTetheredCapture:
		return MethodProfile{HorizontalVelocityScale: 0.1, TimeScale: 1, EnergyScale: 0.2, ExtraUncertaintyM: 2}
	default:
		return MethodProfile{HorizontalVelocityScale: 1, TimeScale: 1, EnergyScale: 1}
	}
}
