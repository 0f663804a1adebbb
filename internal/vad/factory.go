package vad

import (
	"fmt"

	"github.com/normanking/voxaos/internal/config"
)

// ConfigFrom converts the vad config section.
func ConfigFrom(c config.VADConfig) Config {
	return Config{
		Threshold:     float32(c.Threshold),
		SpeechStartMs: c.SpeechStartMs,
		SilenceEndMs:  c.SilenceEndMs,
		SampleRate:    c.SampleRate,
		FrameSamples:  c.FrameSamples,
	}
}

// NewModel creates the model selected by c.Backend. Remote models connect
// lazily on the first frame.
func NewModel(c config.VADConfig) (Model, error) {
	switch c.Backend {
	case "", "energy":
		return NewEnergyModel(c.NoiseFloorDB), nil
	case "remote":
		return NewRemoteModel(RemoteConfig{Endpoint: c.Endpoint}), nil
	default:
		return nil, fmt.Errorf("unknown VAD backend: %s", c.Backend)
	}
}

// NewFromConfig builds a segmenter and its model.
func NewFromConfig(c config.VADConfig) (*Segmenter, Model, error) {
	model, err := NewModel(c)
	if err != nil {
		return nil, nil, err
	}
	seg, err := NewSegmenter(model, ConfigFrom(c))
	if err != nil {
		return nil, nil, err
	}
	return seg, model, nil
}
