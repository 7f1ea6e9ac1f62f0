// Package audio holds the PCM and WAV helpers shared by the recorder and the
// batch transcribers. All PCM is signed 16-bit little-endian.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// BitsPerSample is fixed at 16 for every PCM buffer handled by Flux.
const BitsPerSample = 16

// wavHeaderSize is the size of a canonical 44-byte PCM RIFF header.
const wavHeaderSize = 44

// ErrNotWAV is returned by [DecodeWAV] when the input is not a PCM RIFF/WAVE file.
var ErrNotWAV = errors.New("audio: not a PCM WAV file")

// EncodeWAV wraps raw PCM data in a standard RIFF/WAV container suitable for
// uploading to a transcription endpoint.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * BitsPerSample / 8
	blockAlign := channels * BitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, wavHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[wavHeaderSize:], pcm)

	return buf
}

// DecodeWAV parses a canonical 44-byte-header PCM WAV file and returns its
// samples, sample rate and channel count.
func DecodeWAV(data []byte) (pcm []byte, sampleRate, channels int, err error) {
	if len(data) < wavHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, ErrNotWAV
	}
	if format := binary.LittleEndian.Uint16(data[20:22]); format != 1 {
		return nil, 0, 0, fmt.Errorf("%w: format tag %d", ErrNotWAV, format)
	}
	if bps := binary.LittleEndian.Uint16(data[34:36]); bps != BitsPerSample {
		return nil, 0, 0, fmt.Errorf("%w: %d bits per sample", ErrNotWAV, bps)
	}
	channels = int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate = int(binary.LittleEndian.Uint32(data[24:28]))
	size := int(binary.LittleEndian.Uint32(data[40:44]))
	if size > len(data)-wavHeaderSize {
		size = len(data) - wavHeaderSize
	}
	return data[wavHeaderSize : wavHeaderSize+size], sampleRate, channels, nil
}
