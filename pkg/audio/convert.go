package audio

import (
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// FormatConverter adapts frames from the remote endpoint to the format the
// output device actually runs at. It warns once on the first mismatch and
// drops frames that are not int16-aligned.
// Use one per stream; it is not safe for concurrent use.
type FormatConverter struct {
	Target         Format
	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert returns frame in the target format. A frame already in the target
// format is returned as is. Resampling happens before channel conversion so
// that only mono data is ever resampled.
func (c *FormatConverter) Convert(frame AudioFrame) AudioFrame {
	if len(frame.Data)%2 != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio: odd byte count in PCM frame, dropping",
				"bytes", len(frame.Data),
				"seq", frame.Seq,
			)
		})
		return AudioFrame{SampleRate: c.Target.SampleRate, Channels: c.Target.Channels, Seq: frame.Seq, Timestamp: frame.Timestamp}
	}

	channels := max(frame.Channels, 1)
	if frame.SampleRate == c.Target.SampleRate && channels == c.Target.Channels {
		return frame
	}

	c.warnedMismatch.Do(func() {
		slog.Warn("audio: output device format differs from stream, converting",
			"from_rate", frame.SampleRate, "from_channels", channels,
			"to_rate", c.Target.SampleRate, "to_channels", c.Target.Channels,
		)
	})

	pcm := frame.Data
	if channels == 2 {
		pcm = StereoToMono(pcm)
	}
	pcm = ResampleMono16(pcm, frame.SampleRate, c.Target.SampleRate)
	if c.Target.Channels == 2 {
		pcm = MonoToStereo(pcm)
	}

	return AudioFrame{
		Data:       pcm,
		SampleRate: c.Target.SampleRate,
		Channels:   c.Target.Channels,
		Seq:        frame.Seq,
		Timestamp:  frame.Timestamp,
	}
}

// MonoToStereo duplicates every int16 sample into an L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		j := i * 2
		out[j], out[j+1] = pcm[i], pcm[i+1]
		out[j+2], out[j+3] = pcm[i], pcm[i+1]
	}
	return out
}

// StereoToMono averages each L+R pair into one sample.
func StereoToMono(pcm []byte) []byte {
	n := len(pcm) / 4
	out := make([]byte, n*2)
	for i := range n {
		l := int32(int16(uint16(pcm[i*4]) | uint16(pcm[i*4+1])<<8))
		r := int32(int16(uint16(pcm[i*4+2]) | uint16(pcm[i*4+3])<<8))
		avg := int16((l + r) / 2)
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples int16 mono PCM from srcRate to dstRate using linear
// interpolation. Invalid rates and equal rates return the input unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	src := len(pcm) / 2
	dst := int(int64(src) * int64(dstRate) / int64(srcRate))
	if dst == 0 {
		return nil
	}

	sample := func(i int) float64 {
		return float64(int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8))
	}

	out := make([]byte, dst*2)
	step := float64(srcRate) / float64(dstRate)
	for i := range dst {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx
		if idx+1 < src {
			next = idx + 1
		}
		v := int16(sample(idx)*(1-frac) + sample(next)*frac)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
