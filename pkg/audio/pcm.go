package audio

import (
	"encoding/binary"
	"math"
)

// maxSample is the largest magnitude of a signed 16-bit sample.
const maxSample = 32767.0

// RMS returns the root-mean-square energy of a PCM buffer, in sample units
// (0 to 32767). Returns 0 for buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// Level maps the RMS of pcm onto [0, 1] for a level meter.
func Level(pcm []byte) float64 {
	l := RMS(pcm) / maxSample
	if l > 1 {
		return 1
	}
	return l
}

// Int16ToBytes serialises samples as little-endian PCM. dst is reused when
// it has enough capacity.
func Int16ToBytes(dst []byte, samples []int16) []byte {
	need := len(samples) * 2
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
	return dst
}

// ToFloat32Mono down-mixes PCM to mono float32 samples in [-1, 1] by
// averaging the channels of each frame. A trailing partial frame is ignored.
func ToFloat32Mono(pcm []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(pcm) / (2 * channels)
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[idx:idx+2]))) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// DurationMs returns the playback length of pcm in milliseconds.
func DurationMs(pcm []byte, sampleRate, channels int) int {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return len(pcm) * 1000 / (sampleRate * channels * BitsPerSample / 8)
}
