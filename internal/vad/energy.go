package vad

import "math"

// EnergyModel scores frames by RMS loudness. Frames at or below the noise
// floor score 0, frames at FullScaleDB or above score 1, with a linear ramp
// in between. It is stateless.
type EnergyModel struct {
	NoiseFloorDB float64
	FullScaleDB  float64
}

// NewEnergyModel creates an energy model with the given noise floor in dBFS.
func NewEnergyModel(noiseFloorDB float64) *EnergyModel {
	if noiseFloorDB >= 0 {
		noiseFloorDB = -50
	}
	return &EnergyModel{NoiseFloorDB: noiseFloorDB, FullScaleDB: noiseFloorDB + 30}
}

// Probability implements Model.
func (m *EnergyModel) Probability(frame []float32, _ int) (float32, error) {
	if len(frame) == 0 {
		return 0, nil
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(frame)))
	if rms == 0 {
		return 0, nil
	}

	db := 20 * math.Log10(rms)
	switch {
	case db <= m.NoiseFloorDB:
		return 0, nil
	case db >= m.FullScaleDB:
		return 1, nil
	default:
		return float32((db - m.NoiseFloorDB) / (m.FullScaleDB - m.NoiseFloorDB)), nil
	}
}

// Reset implements Model.
func (m *EnergyModel) Reset() {}
