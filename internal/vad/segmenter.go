// Package vad turns a stream of fixed-size audio frames into speech-start and
// speech-end events. A Model scores each frame; the Segmenter debounces those
// scores with hysteresis so momentary noise or short pauses do not flap.
package vad

import (
	"errors"
	"fmt"
)

// ErrFrameSize is returned when a frame does not have the configured length.
var ErrFrameSize = errors.New("vad: frame size mismatch")

// Model produces a speech probability for one frame.
// Implementations may keep state across frames; Reset clears it.
type Model interface {
	Probability(frame []float32, sampleRate int) (float32, error)
	Reset()
}

// Config configures the hysteresis detector.
type Config struct {
	Threshold     float32
	SpeechStartMs int
	SilenceEndMs  int
	SampleRate    int
	FrameSamples  int
}

// DefaultConfig returns the 16 kHz, 512-sample (32 ms) reference configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:     0.5,
		SpeechStartMs: 300,
		SilenceEndMs:  500,
		SampleRate:    16000,
		FrameSamples:  512,
	}
}

// FrameMs is the duration of one frame in whole milliseconds.
func (c Config) FrameMs() int {
	return c.FrameSamples * 1000 / c.SampleRate
}

// Result reports the segmenter's view of one frame.
type Result struct {
	IsSpeech    bool
	SpeechStart bool
	SpeechEnd   bool
	Prob        float32
}

// Segmenter is a debounced speech/silence detector. It is not safe for
// concurrent use; one pipeline owns one segmenter.
type Segmenter struct {
	model       Model
	cfg         Config
	startFrames int
	endFrames   int

	speechFrames  int
	silenceFrames int
	inSpeech      bool
}

// NewSegmenter creates a segmenter around model.
func NewSegmenter(model Model, cfg Config) (*Segmenter, error) {
	if model == nil {
		return nil, errors.New("vad: model is required")
	}
	if cfg.SampleRate <= 0 || cfg.FrameSamples <= 0 {
		return nil, fmt.Errorf("vad: invalid frame geometry %d samples @ %d Hz", cfg.FrameSamples, cfg.SampleRate)
	}
	frameMs := cfg.FrameMs()
	if frameMs <= 0 {
		return nil, fmt.Errorf("vad: frame shorter than 1ms")
	}

	return &Segmenter{
		model:       model,
		cfg:         cfg,
		startFrames: max(1, cfg.SpeechStartMs/frameMs),
		endFrames:   max(1, cfg.SilenceEndMs/frameMs),
	}, nil
}

// StartFrames is the number of consecutive speech frames that opens an utterance.
func (s *Segmenter) StartFrames() int { return s.startFrames }

// EndFrames is the number of consecutive silent frames that closes an utterance.
func (s *Segmenter) EndFrames() int { return s.endFrames }

// FrameSamples is the required frame length.
func (s *Segmenter) FrameSamples() int { return s.cfg.FrameSamples }

// InSpeech reports whether an utterance is open.
func (s *Segmenter) InSpeech() bool { return s.inSpeech }

// Process scores one frame and advances the hysteresis counters.
//
// A model failure scores the frame as silence: the counters still advance
// and the returned Result is valid alongside the wrapped error, so an open
// utterance closes once enough failing frames arrive. A frame of the wrong
// length is rejected without touching any counter.
func (s *Segmenter) Process(frame []float32) (Result, error) {
	if len(frame) != s.cfg.FrameSamples {
		return Result{}, fmt.Errorf("%w: got %d samples, want %d", ErrFrameSize, len(frame), s.cfg.FrameSamples)
	}

	prob, modelErr := s.model.Probability(frame, s.cfg.SampleRate)
	if modelErr != nil {
		prob = 0
		modelErr = fmt.Errorf("vad: model: %w", modelErr)
	}

	res := Result{Prob: prob, IsSpeech: prob >= s.cfg.Threshold}

	if res.IsSpeech {
		s.speechFrames++
		s.silenceFrames = 0
		if !s.inSpeech && s.speechFrames >= s.startFrames {
			s.inSpeech = true
			res.SpeechStart = true
		}
	} else {
		s.silenceFrames++
		s.speechFrames = 0
		if s.inSpeech && s.silenceFrames >= s.endFrames {
			s.inSpeech = false
			res.SpeechEnd = true
		}
	}

	return res, modelErr
}

// Reset zeroes both counters, closes any open utterance and resets the model.
func (s *Segmenter) Reset() {
	s.speechFrames = 0
	s.silenceFrames = 0
	s.inSpeech = false
	s.model.Reset()
}
