package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// ErrNotWAV is returned when a buffer does not start with a RIFF/WAVE header.
var ErrNotWAV = errors.New("wav: not a RIFF/WAVE stream")

// EncodeWAV wraps mono samples in a 16-bit PCM WAV container.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	data := FloatToPCM16(samples)

	var buf bytes.Buffer
	buf.Grow(44 + len(data))
	buf.WriteString("RIFF")
	writeLE(&buf, uint32(36+len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	writeLE(&buf, uint32(16))
	writeLE(&buf, uint16(wavFormatPCM))
	writeLE(&buf, uint16(1))
	writeLE(&buf, uint32(sampleRate))
	writeLE(&buf, uint32(sampleRate*2))
	writeLE(&buf, uint16(2))
	writeLE(&buf, uint16(16))

	buf.WriteString("data")
	writeLE(&buf, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

func writeLE(buf *bytes.Buffer, v any) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

// DecodeWAV parses a PCM16 or float32 WAV file into mono samples.
// Multi-channel audio is downmixed by averaging.
func DecodeWAV(b []byte) ([]float32, int, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, 0, ErrNotWAV
	}

	var (
		format     uint16
		channels   uint16
		sampleRate uint32
		bits       uint16
		haveFmt    bool
	)

	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(b) {
			// Streaming encoders sometimes write a bogus data size.
			end = len(b)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("wav: fmt chunk too short (%d)", size)
			}
			format = binary.LittleEndian.Uint16(b[body:])
			channels = binary.LittleEndian.Uint16(b[body+2:])
			sampleRate = binary.LittleEndian.Uint32(b[body+4:])
			bits = binary.LittleEndian.Uint16(b[body+14:])
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, errors.New("wav: data chunk before fmt chunk")
			}
			samples, err := decodeSamples(b[body:end], format, channels, bits)
			if err != nil {
				return nil, 0, err
			}
			return samples, int(sampleRate), nil
		}

		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}
	return nil, 0, errors.New("wav: no data chunk")
}

func decodeSamples(data []byte, format, channels, bits uint16) ([]float32, error) {
	if channels == 0 {
		return nil, errors.New("wav: zero channels")
	}

	var width int
	switch {
	case format == wavFormatPCM && bits == 16:
		width = 2
	case format == wavFormatFloat && bits == 32:
		width = 4
	default:
		return nil, fmt.Errorf("wav: unsupported format %d/%d-bit", format, bits)
	}

	frame := width * int(channels)
	frames := len(data) / frame
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < int(channels); c++ {
			off := i*frame + c*width
			if width == 2 {
				sum += float32(int16(binary.LittleEndian.Uint16(data[off:]))) / 32768.0
			} else {
				sum += math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			}
		}
		out[i] = sum / float32(channels)
	}
	return out, nil
}
