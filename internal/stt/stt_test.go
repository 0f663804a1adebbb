package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/voxaos/internal/audio"
	"github.com/normanking/voxaos/internal/config"
)

func TestMistralEngine_Transcribe(t *testing.T) {
	samples := []float32{0, 0.25, -0.25, 0.5}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "voxtral-mini-latest", r.FormValue("model"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		assert.Equal(t, "audio.wav", hdr.Filename)
		assert.Equal(t, "audio/wav", hdr.Header.Get("Content-Type"))

		raw, _ := io.ReadAll(f)
		decoded, rate, err := audio.DecodeWAV(raw)
		assert.NoError(t, err)
		assert.Equal(t, 16000, rate)
		assert.Len(t, decoded, len(samples))

		_, _ = w.Write([]byte(`{"text":"turn on the lights"}`))
	}))
	defer srv.Close()

	e := NewMistralEngine(srv.URL, "key", "")
	text, err := e.Transcribe(context.Background(), samples, 16000)
	require.NoError(t, err)
	assert.Equal(t, "turn on the lights", text)
}

func TestMistralEngine_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewMistralEngine(srv.URL, "key", "m").Transcribe(context.Background(), []float32{0}, 16000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestGoogleEngine_Transcribe(t *testing.T) {
	var got *speechpb.RecognizeRequest
	g := &GoogleEngine{language: "en-GB"}
	g.recognize = func(_ context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		got = req
		return &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "what time "}, {Transcript: "watt time"}}},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "is it"}}},
			{},
		}}, nil
	}

	text, err := g.Transcribe(context.Background(), []float32{0.1, -0.1}, 16000)
	require.NoError(t, err)
	assert.Equal(t, "what time is it", text)

	require.NotNil(t, got)
	assert.Equal(t, speechpb.RecognitionConfig_LINEAR16, got.GetConfig().GetEncoding())
	assert.Equal(t, int32(16000), got.GetConfig().GetSampleRateHertz())
	assert.Equal(t, "en-GB", got.GetConfig().GetLanguageCode())
	assert.Len(t, got.GetAudio().GetContent(), 4, "two PCM16 samples")

	g.recognize = func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return nil, errors.New("quota")
	}
	_, err = g.Transcribe(context.Background(), []float32{0.1}, 16000)
	assert.Error(t, err)

	text, err = g.Transcribe(context.Background(), nil, 16000)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestLocalEngine(t *testing.T) {
	_, err := LocalEngine{}.Transcribe(context.Background(), []float32{0}, 16000)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestNew(t *testing.T) {
	cfg := config.Default().STT

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &MistralEngine{}, e)

	cfg.Backend = "local"
	e, err = New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, LocalEngine{}, e)

	cfg.Backend = "nope"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}
