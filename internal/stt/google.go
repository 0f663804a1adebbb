package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/normanking/voxaos/internal/audio"
)

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// GoogleEngine transcribes with Cloud Speech-to-Text synchronous recognition.
// Credentials come from Application Default Credentials.
type GoogleEngine struct {
	client    *speech.Client
	recognize recognizeFunc
	language  string
}

// NewGoogleEngine dials the Speech API.
func NewGoogleEngine(ctx context.Context, language string) (*GoogleEngine, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	g := &GoogleEngine{client: client, language: language}
	g.recognize = func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return client.Recognize(ctx, req)
	}
	return g, nil
}

// Transcribe sends the utterance as LINEAR16 and joins the top alternative
// of every result.
func (g *GoogleEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	language := g.language
	if language == "" {
		language = "en-US"
	}

	resp, err := g.recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(sampleRate),
			LanguageCode:    language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.FloatToPCM16(samples)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google recognize: %w", err)
	}

	var parts []string
	for _, r := range resp.GetResults() {
		if alts := r.GetAlternatives(); len(alts) > 0 {
			if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " "), nil
}

// Close releases the gRPC connection.
func (g *GoogleEngine) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
