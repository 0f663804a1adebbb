// Package pipeline implements the turn-taking state machine that carries an
// utterance from microphone audio through transcription, the agent and
// speech synthesis.
//
// Every entry point returns a lazy event sequence. Nothing happens until the
// caller ranges over it; one utterance's events arrive in order and the
// sequence ends when the pipeline is back to IDLE or waiting for more audio.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/normanking/voxaos/internal/audio"
	"github.com/normanking/voxaos/internal/metrics"
	"github.com/normanking/voxaos/internal/stt"
	"github.com/normanking/voxaos/internal/tts"
	"github.com/normanking/voxaos/internal/vad"
	"github.com/normanking/voxaos/pkg/types"
)

// User-facing degradation messages.
const (
	MsgNoSpeech     = "I didn't catch that. Could you repeat?"
	MsgSTTFailed    = "I couldn't process the audio: %v"
	MsgAgentFailed  = "I'm having trouble connecting to my brain. Try again in a moment."
	MsgVoiceFailure = "(Voice unavailable: %v)"
)

// Agent answers a transcribed request.
type Agent interface {
	Process(ctx context.Context, input string) (*types.Response, error)
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Agent      Agent
	STT        stt.Engine
	TTS        tts.Engine
	Segmenter  *vad.Segmenter
	SampleRate int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStageTimeout bounds each of the STT, agent and TTS stages.
func WithStageTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.stageTimeout = d }
}

// WithPreRoll keeps the frames that opened an utterance in its audio. On by
// default; without it the buffer starts at the frame that crossed the
// speech-start threshold.
func WithPreRoll(enabled bool) Option {
	return func(p *Pipeline) { p.preRoll = enabled }
}

// WithLogger replaces the package logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// Pipeline is the per-conversation state machine. FeedAudio, PushToTalk and
// SubmitText must not be called concurrently; State may be read from any
// goroutine.
type Pipeline struct {
	agent      Agent
	stt        stt.Engine
	tts        tts.Engine
	segmenter  *vad.Segmenter
	sampleRate int

	stageTimeout time.Duration
	preRoll      bool
	log          zerolog.Logger

	state atomic.Value // types.PipelineState

	// Owned by the single caller flow.
	buffer  [][]float32
	recent  [][]float32
	pending []float32
}

// New creates a Pipeline in the IDLE state.
func New(deps Deps, opts ...Option) (*Pipeline, error) {
	if deps.Agent == nil || deps.STT == nil || deps.TTS == nil {
		return nil, errors.New("pipeline: agent, STT and TTS are required")
	}
	if deps.Segmenter == nil {
		return nil, errors.New("pipeline: segmenter is required")
	}
	if deps.SampleRate <= 0 {
		deps.SampleRate = 16000
	}

	p := &Pipeline{
		agent:      deps.Agent,
		stt:        deps.STT,
		tts:        deps.TTS,
		segmenter:  deps.Segmenter,
		sampleRate: deps.SampleRate,
		preRoll:    true,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.state.Store(types.StateIdle)
	return p, nil
}

// State returns the current state.
func (p *Pipeline) State() types.PipelineState {
	return p.state.Load().(types.PipelineState)
}

// Busy reports whether audio would currently be dropped.
func (p *Pipeline) Busy() bool {
	s := p.State()
	return s == types.StateProcessing || s == types.StateSpeaking
}

// Reset discards buffered audio and returns a listening pipeline to IDLE.
// The returned sequence carries the state change, if any.
func (p *Pipeline) Reset() iter.Seq[types.StreamChunk] {
	return func(yield func(types.StreamChunk) bool) {
		e := newEmitter(yield)
		p.clearAudio()
		if p.State() == types.StateListening {
			p.setState(e, types.StateIdle)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// ENTRY POINTS
// ═══════════════════════════════════════════════════════════════════════════════

// FeedAudio feeds live PCM16 audio. The samples are split into segmenter
// frames; a remainder is kept for the next call. Audio fed while PROCESSING
// or SPEAKING is dropped without touching the segmenter or the buffer.
func (p *Pipeline) FeedAudio(ctx context.Context, pcm []byte) iter.Seq[types.StreamChunk] {
	return func(yield func(types.StreamChunk) bool) {
		if p.Busy() {
			metrics.DroppedFrames.Inc()
			return
		}
		samples, err := audio.PCM16ToFloat(pcm)
		if err != nil {
			p.log.Warn().Err(err).Int("bytes", len(pcm)).Msg("malformed audio frame")
			return
		}

		e := newEmitter(yield)
		p.pending = append(p.pending, samples...)
		size := p.segmenter.FrameSamples()
		for len(p.pending) >= size {
			frame := p.pending[:size:size]
			p.pending = p.pending[size:]
			if p.feedFrame(ctx, e, frame) {
				// The rest of this delivery arrived while busy.
				return
			}
		}
		if len(p.pending) == 0 {
			p.pending = nil
		}
	}
}

// feedFrame runs one frame through the segmenter. It reports whether an
// utterance was processed.
func (p *Pipeline) feedFrame(ctx context.Context, e *emitter, frame []float32) bool {
	res, err := p.segmenter.Process(frame)
	if err != nil {
		if errors.Is(err, vad.ErrFrameSize) {
			p.log.Warn().Err(err).Msg("frame dropped")
			return false
		}
		p.log.Warn().Err(err).Msg("vad failed, frame treated as silence")
	}

	if p.State() == types.StateIdle && p.preRoll {
		p.recent = append(p.recent, frame)
		if n := p.segmenter.StartFrames(); len(p.recent) > n {
			p.recent = p.recent[len(p.recent)-n:]
		}
	}

	if res.SpeechStart {
		p.setState(e, types.StateListening)
		p.buffer = p.buffer[:0]
		if p.preRoll {
			p.buffer = append(p.buffer, p.recent...)
			p.recent = nil
			return false
		}
	}

	if p.State() == types.StateListening {
		p.buffer = append(p.buffer, frame)
	}

	if res.SpeechEnd && p.State() == types.StateListening {
		p.processUtterance(ctx, e)
		return true
	}
	return false
}

// PushToTalk processes pcm as one complete utterance, bypassing VAD. Any
// live-stream audio buffered so far is discarded.
func (p *Pipeline) PushToTalk(ctx context.Context, pcm []byte) iter.Seq[types.StreamChunk] {
	return func(yield func(types.StreamChunk) bool) {
		if p.Busy() {
			metrics.DroppedFrames.Inc()
			return
		}
		e := newEmitter(yield)
		samples, err := audio.PCM16ToFloat(pcm)
		if err != nil {
			p.log.Warn().Err(err).Msg("malformed push-to-talk audio")
			samples = nil
		}
		p.clearAudio()
		if len(samples) > 0 {
			p.buffer = append(p.buffer, samples)
		}
		p.processUtterance(ctx, e)
	}
}

// SubmitText runs typed input through the agent and TTS, skipping STT.
func (p *Pipeline) SubmitText(ctx context.Context, text string) iter.Seq[types.StreamChunk] {
	return func(yield func(types.StreamChunk) bool) {
		if p.Busy() {
			return
		}
		e := newEmitter(yield)
		p.clearAudio()
		p.setState(e, types.StateProcessing)
		if strings.TrimSpace(text) == "" {
			p.setState(e, types.StateIdle)
			return
		}
		p.respond(ctx, e, text, types.NewTimings(), "text")
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// UTTERANCE
// ═══════════════════════════════════════════════════════════════════════════════

func (p *Pipeline) processUtterance(ctx context.Context, e *emitter) {
	p.setState(e, types.StateProcessing)

	if len(p.buffer) == 0 {
		p.clearAudio()
		metrics.Utterances.WithLabelValues("empty_buffer").Inc()
		p.setState(e, types.StateIdle)
		return
	}
	samples := audio.Concat(p.buffer)
	p.clearAudio()

	timings := types.NewTimings()

	start := time.Now()
	transcript, err := p.transcribe(ctx, samples)
	timings.Set("stt", elapsedMs(start))
	if err != nil {
		p.log.Error().Err(err).Msg("transcription failed")
		e.emit(types.TextChunk(types.ChunkText, fmt.Sprintf(MsgSTTFailed, err)))
		transcript = ""
	}

	e.emit(types.TextChunk(types.ChunkTranscript, transcript))

	if strings.TrimSpace(transcript) == "" {
		e.emit(types.TextChunk(types.ChunkText, MsgNoSpeech))
		metrics.Utterances.WithLabelValues("no_speech").Inc()
		p.setState(e, types.StateIdle)
		return
	}

	p.log.Info().
		Str("transcript", transcript).
		Float64("audio_ms", audio.DurationMs(len(samples), p.sampleRate)).
		Msg("utterance transcribed")

	p.respond(ctx, e, transcript, timings, "voice")
}

// respond runs the agent and TTS stages. The pipeline is PROCESSING on entry
// and IDLE on return.
func (p *Pipeline) respond(ctx context.Context, e *emitter, input string, timings *types.Timings, source string) {
	start := time.Now()
	resp, err := p.ask(ctx, input)
	if err != nil {
		p.log.Error().Err(err).Str("source", source).Msg("agent failed")
		e.emit(types.TextChunk(types.ChunkText, MsgAgentFailed))
		metrics.Utterances.WithLabelValues("agent_error").Inc()
		p.setState(e, types.StateIdle)
		return
	}
	timings.Set("orchestrator", elapsedMs(start))
	timings.Merge(resp.Latency)

	for _, name := range resp.ToolNames() {
		e.emit(types.TextChunk(types.ChunkToolStart, name))
	}
	e.emit(types.TextChunk(types.ChunkText, resp.Text))

	if strings.TrimSpace(resp.Text) == "" {
		metrics.Utterances.WithLabelValues("empty_reply").Inc()
		p.setState(e, types.StateIdle)
		return
	}

	p.setState(e, types.StateSpeaking)

	start = time.Now()
	outcome := "ok"
	speech, err := p.synthesize(ctx, resp.Text)
	if err != nil {
		p.log.Warn().Err(err).Msg("synthesis failed, replying with text only")
		e.emit(types.TextChunk(types.ChunkText, fmt.Sprintf(MsgVoiceFailure, err)))
		outcome = "text_only"
	} else if len(speech) > 0 {
		e.emit(types.AudioChunk(audio.FloatToPCM16(speech)))
	}
	timings.Set("tts", elapsedMs(start))

	var total float64
	for _, stage := range []string{"stt", "orchestrator", "tts"} {
		if v, ok := timings.Get(stage); ok {
			total += v
			metrics.ObserveStage(stage, v)
		}
	}
	timings.Set("total", total)

	e.emit(types.TextChunk(types.ChunkThinking, timings.String()))
	metrics.Utterances.WithLabelValues(outcome).Inc()

	p.log.Info().Str("source", source).Str("timing", timings.String()).Msg("utterance complete")
	p.setState(e, types.StateIdle)
}

func (p *Pipeline) transcribe(ctx context.Context, samples []float32) (string, error) {
	ctx, cancel := p.stageContext(ctx)
	defer cancel()
	return p.stt.Transcribe(ctx, samples, p.sampleRate)
}

func (p *Pipeline) ask(ctx context.Context, input string) (*types.Response, error) {
	ctx, cancel := p.stageContext(ctx)
	defer cancel()
	resp, err := p.agent.Process(ctx, input)
	if err == nil && resp == nil {
		err = errors.New("agent returned no response")
	}
	return resp, err
}

func (p *Pipeline) synthesize(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := p.stageContext(ctx)
	defer cancel()
	return p.tts.Synthesize(ctx, text)
}

func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.stageTimeout > 0 {
		return context.WithTimeout(ctx, p.stageTimeout)
	}
	return context.WithCancel(ctx)
}

// ═══════════════════════════════════════════════════════════════════════════════
// STATE
// ═══════════════════════════════════════════════════════════════════════════════

func (p *Pipeline) setState(e *emitter, s types.PipelineState) {
	prev := p.State()
	if prev == s {
		return
	}
	p.state.Store(s)
	metrics.StateTransitions.WithLabelValues(string(s)).Inc()
	p.log.Debug().Str("from", string(prev)).Str("to", string(s)).Msg("state change")
	e.emit(types.StateChunk(s))
}

func (p *Pipeline) clearAudio() {
	p.buffer = nil
	p.recent = nil
	p.pending = nil
	p.segmenter.Reset()
}

// emitter forwards chunks until the consumer stops; after that the pipeline
// keeps working silently so it never stops halfway through an utterance.
type emitter struct {
	yield func(types.StreamChunk) bool
	done  bool
}

func newEmitter(yield func(types.StreamChunk) bool) *emitter {
	return &emitter{yield: yield}
}

func (e *emitter) emit(c types.StreamChunk) {
	if e.done {
		return
	}
	if !e.yield(c) {
		e.done = true
	}
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
