package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestEncodeDecodeWAV(t *testing.T) {
	t.Parallel()
	pcm := Int16ToBytes(nil, []int16{0, 100, -100, 32767, -32768, 5})
	wav := EncodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate header = %d, want 16000", got)
	}

	got, rate, ch, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 16000 || ch != 1 {
		t.Errorf("rate/channels = %d/%d, want 16000/1", rate, ch)
	}
	if string(got) != string(pcm) {
		t.Error("decoded PCM differs from input")
	}
}

func TestDecodeWAV_Rejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("RIFF")},
		{"not riff", make([]byte, 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, _, _, err := DecodeWAV(tt.data); !errors.Is(err, ErrNotWAV) {
				t.Errorf("err = %v, want ErrNotWAV", err)
			}
		})
	}
}

func TestRMSAndLevel(t *testing.T) {
	t.Parallel()
	if RMS(nil) != 0 {
		t.Error("RMS(nil) should be 0")
	}
	pcm := Int16ToBytes(nil, []int16{1000, -1000, 1000, -1000})
	if got := RMS(pcm); math.Abs(got-1000) > 0.001 {
		t.Errorf("RMS = %f, want 1000", got)
	}
	loud := Int16ToBytes(nil, []int16{-32768, -32768})
	if got := Level(loud); got != 1 {
		t.Errorf("Level = %f, want clamp to 1", got)
	}
}

func TestToFloat32Mono(t *testing.T) {
	t.Parallel()
	stereo := Int16ToBytes(nil, []int16{16384, 0, -16384, -16384})
	mono := ToFloat32Mono(stereo, 2)
	if len(mono) != 2 {
		t.Fatalf("len = %d, want 2", len(mono))
	}
	if math.Abs(float64(mono[0])-0.25) > 1e-6 {
		t.Errorf("mono[0] = %f, want 0.25", mono[0])
	}
	if math.Abs(float64(mono[1])+0.5) > 1e-6 {
		t.Errorf("mono[1] = %f, want -0.5", mono[1])
	}
}

func TestDurationMs(t *testing.T) {
	t.Parallel()
	pcm := make([]byte, 32000) // 1s at 16kHz mono
	if got := DurationMs(pcm, 16000, 1); got != 1000 {
		t.Errorf("DurationMs = %d, want 1000", got)
	}
	if got := DurationMs(pcm, 0, 1); got != 0 {
		t.Errorf("DurationMs with zero rate = %d, want 0", got)
	}
}
