package vad

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/voxaos/internal/config"
)

// scriptedModel returns queued probabilities in order, then 0.
type scriptedModel struct {
	probs  []float32
	calls  int
	resets int
	err    error
}

func (m *scriptedModel) Probability(_ []float32, _ int) (float32, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.calls++
	if len(m.probs) == 0 {
		return 0, nil
	}
	p := m.probs[0]
	m.probs = m.probs[1:]
	return p, nil
}

func (m *scriptedModel) Reset() { m.resets++ }

func repeat(p float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = p
	}
	return out
}

func newTestSegmenter(t *testing.T, m Model) *Segmenter {
	t.Helper()
	s, err := NewSegmenter(m, DefaultConfig())
	require.NoError(t, err)
	return s
}

func frame() []float32 { return make([]float32, 512) }

func TestSegmenter_FrameCounts(t *testing.T) {
	s := newTestSegmenter(t, &scriptedModel{})
	// 300ms / 32ms and 500ms / 32ms, truncated.
	assert.Equal(t, 9, s.StartFrames())
	assert.Equal(t, 15, s.EndFrames())
}

func TestSegmenter_StartRequiresConsecutiveFrames(t *testing.T) {
	m := &scriptedModel{probs: repeat(0.9, 8)}
	s := newTestSegmenter(t, m)

	for i := 0; i < 8; i++ {
		res, err := s.Process(frame())
		require.NoError(t, err)
		assert.True(t, res.IsSpeech)
		assert.False(t, res.SpeechStart, "frame %d must not open an utterance", i)
	}

	m.probs = []float32{0.9}
	res, err := s.Process(frame())
	require.NoError(t, err)
	assert.True(t, res.SpeechStart, "the start_frames-th frame opens the utterance")
	assert.True(t, s.InSpeech())

	m.probs = []float32{0.9}
	res, err = s.Process(frame())
	require.NoError(t, err)
	assert.False(t, res.SpeechStart, "speech_start is reported once")
}

func TestSegmenter_SilenceBreaksStartRun(t *testing.T) {
	probs := append(repeat(0.9, 8), 0.1)
	probs = append(probs, repeat(0.9, 8)...)
	s := newTestSegmenter(t, &scriptedModel{probs: probs})

	for range probs {
		res, err := s.Process(frame())
		require.NoError(t, err)
		assert.False(t, res.SpeechStart)
	}
}

func TestSegmenter_EndRequiresConsecutiveSilence(t *testing.T) {
	m := &scriptedModel{probs: repeat(0.9, 9)}
	s := newTestSegmenter(t, m)
	for i := 0; i < 9; i++ {
		_, err := s.Process(frame())
		require.NoError(t, err)
	}
	require.True(t, s.InSpeech())

	m.probs = repeat(0.1, 14)
	for i := 0; i < 14; i++ {
		res, err := s.Process(frame())
		require.NoError(t, err)
		assert.False(t, res.SpeechEnd)
	}

	m.probs = []float32{0.1}
	res, err := s.Process(frame())
	require.NoError(t, err)
	assert.True(t, res.SpeechEnd)
	assert.False(t, s.InSpeech())
}

func TestSegmenter_ThresholdIsInclusive(t *testing.T) {
	s := newTestSegmenter(t, &scriptedModel{probs: []float32{0.5, 0.49}})

	res, err := s.Process(frame())
	require.NoError(t, err)
	assert.True(t, res.IsSpeech)
	assert.Equal(t, float32(0.5), res.Prob)

	res, err = s.Process(frame())
	require.NoError(t, err)
	assert.False(t, res.IsSpeech)
}

func TestSegmenter_FrameSizeMismatch(t *testing.T) {
	m := &scriptedModel{}
	s := newTestSegmenter(t, m)

	_, err := s.Process(make([]float32, 480))
	assert.ErrorIs(t, err, ErrFrameSize)
	assert.Equal(t, 0, m.calls, "model must not be invoked for a bad frame")
}

func TestSegmenter_ModelError(t *testing.T) {
	s := newTestSegmenter(t, &scriptedModel{err: errors.New("boom")})
	res, err := s.Process(frame())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrFrameSize)
	assert.False(t, res.IsSpeech)
	assert.Zero(t, res.Prob)
}

func TestSegmenter_ModelErrorClosesOpenUtterance(t *testing.T) {
	m := &scriptedModel{probs: repeat(0.9, 9)}
	s := newTestSegmenter(t, m)
	for i := 0; i < 9; i++ {
		_, err := s.Process(frame())
		require.NoError(t, err)
	}
	require.True(t, s.InSpeech())

	m.err = errors.New("onnx session lost")
	for i := 0; i < s.EndFrames()-1; i++ {
		res, err := s.Process(frame())
		require.Error(t, err)
		assert.False(t, res.SpeechEnd)
	}
	res, err := s.Process(frame())
	require.Error(t, err)
	assert.True(t, res.SpeechEnd, "failing frames count as silence")
	assert.False(t, s.InSpeech())
}

func TestSegmenter_Reset(t *testing.T) {
	m := &scriptedModel{probs: repeat(0.9, 9)}
	s := newTestSegmenter(t, m)
	for i := 0; i < 9; i++ {
		_, _ = s.Process(frame())
	}
	require.True(t, s.InSpeech())

	s.Reset()
	assert.False(t, s.InSpeech())
	assert.Equal(t, 1, m.resets)

	// After reset a full start run is needed again.
	m.probs = repeat(0.9, 8)
	for i := 0; i < 8; i++ {
		res, err := s.Process(frame())
		require.NoError(t, err)
		assert.False(t, res.SpeechStart)
	}
}

func TestNewSegmenter_Validation(t *testing.T) {
	_, err := NewSegmenter(nil, DefaultConfig())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.SampleRate = 0
	_, err = NewSegmenter(&scriptedModel{}, cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.SpeechStartMs = 10
	s, err := NewSegmenter(&scriptedModel{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, s.StartFrames(), "start frames never drop below one")
}

func TestEnergyModel(t *testing.T) {
	m := NewEnergyModel(-50)

	p, err := m.Probability(make([]float32, 512), 16000)
	require.NoError(t, err)
	assert.Equal(t, float32(0), p)

	loud := repeat(0.5, 512)
	p, err = m.Probability(loud, 16000)
	require.NoError(t, err)
	assert.Equal(t, float32(1), p)

	// -40 dBFS sits a third of the way up the 30 dB ramp.
	mid := repeat(0.01, 512)
	p, err = m.Probability(mid, 16000)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3, p, 0.01)
}

func TestNewFromConfig(t *testing.T) {
	c := config.DefaultVADConfig()
	seg, model, err := NewFromConfig(c)
	require.NoError(t, err)
	assert.IsType(t, &EnergyModel{}, model)
	assert.Equal(t, 9, seg.StartFrames())
	assert.Equal(t, 15, seg.EndFrames())

	c.Backend = "remote"
	_, model, err = NewFromConfig(c)
	require.NoError(t, err)
	assert.IsType(t, &RemoteModel{}, model)

	c.Backend = "webrtc"
	_, _, err = NewFromConfig(c)
	assert.Error(t, err)
}
