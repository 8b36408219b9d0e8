package core

import (
	"math"

	"github.com/signalsfoundry/impact-predictor/model"
)

// WindSource supplies the wind used for a prediction.
type WindSource interface {
	Current() model.WindVector
	SetSpeed(mps float64)
	SetDirection(deg float64)
}

// ConstantWind is a WindSource whose value only changes through its setters.
type ConstantWind struct {
	wind model.WindVector
}

// NewConstantWind returns a wind source normalised to a valid vector.
func NewConstantWind(speedMps, directionDeg float64) *ConstantWind {
	return &ConstantWind{wind: model.WindVector{SpeedMps: speedMps, DirectionDeg: directionDeg}.Normalized()}
}

// Current returns the wind vector.
func (c *ConstantWind) Current() model.WindVector { return c.wind }

// SetSpeed clamps negative and non-finite speeds to zero.
func (c *ConstantWind) SetSpeed(mps float64) {
	if !(mps > 0) || math.IsInf(mps, 0) {
		mps = 0
	}
	c.wind.SpeedMps = mps
}

// SetDirection wraps the bearing to [0, 360).
func (c *ConstantWind) SetDirection(deg float64) {
	c.wind.DirectionDeg = model.WrapDegrees(deg)
}
