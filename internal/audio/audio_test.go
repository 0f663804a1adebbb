package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCM16ToFloat(t *testing.T) {
	pcm := make([]byte, 6)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(0))
	binary.LittleEndian.PutUint16(pcm[2:], uint16(16384))
	neg := int16(-32768)
	binary.LittleEndian.PutUint16(pcm[4:], uint16(neg))

	got, err := PCM16ToFloat(pcm)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5, -1}, got)
}

func TestPCM16ToFloat_OddLength(t *testing.T) {
	_, err := PCM16ToFloat([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestFloatToPCM16_Clamps(t *testing.T) {
	pcm := FloatToPCM16([]float32{2, -2, 0})
	require.Len(t, pcm, 6)

	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(pcm[0:])))
	assert.Equal(t, int16(-32767), int16(binary.LittleEndian.Uint16(pcm[2:])))
	assert.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(pcm[4:])))
}

func TestConcat(t *testing.T) {
	got := Concat([][]float32{{1, 2}, {}, {3}})
	assert.Equal(t, []float32{1, 2, 3}, got)
	assert.Empty(t, Concat(nil))
}

func TestWAVRoundTrip(t *testing.T) {
	in := make([]float32, 160)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) / 10))
	}

	wav := EncodeWAV(in, 16000)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Len(t, wav, 44+len(in)*2)

	out, rate, err := DecodeWAV(wav)
	require.NoError(t, err)
	assert.Equal(t, 16000, rate)
	require.Len(t, out, len(in))
	for i := range in {
		assert.InDelta(t, in[i], out[i], 1.0/8000)
	}
}

func TestDecodeWAV_Float32Stereo(t *testing.T) {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data[0:], math.Float32bits(0.5))
	binary.LittleEndian.PutUint32(data[4:], math.Float32bits(-0.5))
	binary.LittleEndian.PutUint32(data[8:], math.Float32bits(1))
	binary.LittleEndian.PutUint32(data[12:], math.Float32bits(0))

	wav := []byte("RIFF\x00\x00\x00\x00WAVEfmt ")
	fmtChunk := make([]byte, 20)
	binary.LittleEndian.PutUint32(fmtChunk[0:], 16)
	binary.LittleEndian.PutUint16(fmtChunk[4:], wavFormatFloat)
	binary.LittleEndian.PutUint16(fmtChunk[6:], 2)
	binary.LittleEndian.PutUint32(fmtChunk[8:], 22050)
	binary.LittleEndian.PutUint32(fmtChunk[12:], 22050*8)
	binary.LittleEndian.PutUint16(fmtChunk[16:], 8)
	binary.LittleEndian.PutUint16(fmtChunk[18:], 32)
	wav = append(wav, fmtChunk...)
	wav = append(wav, []byte("data")...)
	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, uint32(len(data)))
	wav = append(wav, size...)
	wav = append(wav, data...)

	out, rate, err := DecodeWAV(wav)
	require.NoError(t, err)
	assert.Equal(t, 22050, rate)
	assert.Equal(t, []float32{0, 0.5}, out)
}

func TestDecodeWAV_Rejects(t *testing.T) {
	_, _, err := DecodeWAV([]byte("not a wav file at all"))
	assert.ErrorIs(t, err, ErrNotWAV)
}
