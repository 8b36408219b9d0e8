package model

// ImpactSource records which detection path confirmed the impact.
type ImpactSource string

const (
	ImpactSourceContact        ImpactSource = "contact"
	ImpactSourceGroundCrossing ImpactSource = "ground_crossing"
)

// ImpactComparisonRecord compares a locked prediction against the measured
// impact. It is built once per fall.
type ImpactComparisonRecord struct {
	EpisodeID string
	Source    ImpactSource

	PredictedTTI float64
	ActualTTI    float64

	PredictedEnergyJ float64
	ActualEnergyJ    float64

	// PositionErrorM is the planar distance between the predicted and the
	// actual impact points; the vertical component is ignored.
	PositionErrorM float64

	ImpactPoint Vec3
}

// TimeErrorS returns actual minus predicted time-to-impact.
func (r ImpactComparisonRecord) TimeErrorS() float64 {
	return r.ActualTTI - r.PredictedTTI
}

// EnergyErrorJ returns actual minus predicted impact energy.
func (r ImpactComparisonRecord) EnergyErrorJ() float64 {
	return r.ActualEnergyJ - r.PredictedEnergyJ
}
