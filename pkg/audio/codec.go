package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// Float32ToPCM16 converts float samples in [-1, 1] to little-endian int16 PCM.
// Samples outside the range saturate at the range bounds; NaN becomes silence.
// Negative samples scale by 0x8000 and positive ones by 0x7FFF so that both
// -1 and 1 map exactly onto the int16 extremes.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(s)))
	}
	return out
}

func floatToInt16(s float32) int16 {
	if s != s { // NaN
		return 0
	}
	s = max(-1, min(1, s))
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7FFF)
}

// PCM16ToFloat32 converts little-endian int16 PCM to float samples by dividing
// by 32768. A trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return out
}

// EncodeBase64 encodes PCM bytes for text-based transports.
func EncodeBase64(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// DecodeBase64 decodes a transport payload produced by [EncodeBase64].
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("audio: decode base64: %w", err)
	}
	return b, nil
}

// RMS returns the root-mean-square amplitude of samples, or 0 for an empty
// buffer.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
