// Package audio converts between the wire format (16-bit little-endian PCM)
// and the float sample domain used by the VAD, STT and TTS engines.
package audio

import (
	"encoding/binary"
	"fmt"
)

// DefaultSampleRate is the sample rate of every stream VoxaOS handles.
const DefaultSampleRate = 16000

// PCM16ToFloat decodes little-endian int16 samples into [-1, 1) floats (x/32768).
// A trailing odd byte is an error.
func PCM16ToFloat(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm16: odd byte count %d", len(pcm))
	}
	out := make([]float32, len(pcm)/2)
	for i := range out {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		out[i] = float32(s) / 32768.0
	}
	return out, nil
}

// FloatToPCM16 encodes samples as little-endian int16 (x*32767), clamping to [-1, 1].
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s*32767)))
	}
	return out
}

// Concat joins sample blocks into one contiguous slice.
func Concat(blocks [][]float32) []float32 {
	n := 0
	for _, b := range blocks {
		n += len(b)
	}
	out := make([]float32, 0, n)
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}

// DurationMs returns the length of a sample block in milliseconds.
func DurationMs(samples int, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(samples) * 1000 / float64(sampleRate)
}
