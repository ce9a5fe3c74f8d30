package encoder

import (
	"bytes"
	"math"
	"testing"

	"github.com/mewkiz/flac"
)

func sine(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(float64(i)*2*math.Pi*440/SampleRate))
	}
	return samples
}

func TestFlacEncoder(t *testing.T) {
	samples := sine(BlockSize*2 + BlockSize/2)

	enc, err := FLAC(samples, 0)
	if err != nil {
		t.Fatalf("FLAC: %v", err)
	}
	flacData := enc.Data

	if enc.Frames != uint64(len(samples)) {
		t.Errorf("Frames = %d, want %d", enc.Frames, len(samples))
	}
	if len(flacData) < 4 || string(flacData[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}

	stream, err := flac.New(bytes.NewReader(flacData))
	if err != nil {
		t.Fatalf("parse encoded stream: %v", err)
	}
	defer stream.Close()
	if stream.Info.SampleRate != SampleRate {
		t.Errorf("SampleRate = %d, want %d", stream.Info.SampleRate, SampleRate)
	}

	var decoded []int32
	for {
		f, err := stream.ParseNext()
		if err != nil {
			break
		}
		decoded = append(decoded, f.Subframes[0].Samples...)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(samples))
	}
	for i := range samples {
		if decoded[i] != int32(samples[i]) {
			t.Fatalf("sample %d = %d, want %d", i, decoded[i], samples[i])
		}
	}
}

func TestFlacCustomRate(t *testing.T) {
	enc, err := FLAC(sine(1000), 8000)
	if err != nil {
		t.Fatal(err)
	}
	stream, err := flac.New(bytes.NewReader(enc.Data))
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()
	if stream.Info.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want 8000", stream.Info.SampleRate)
	}
}

func TestFlacEmpty(t *testing.T) {
	enc, err := FLAC(nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if enc.Frames != 0 || string(enc.Data[:4]) != "fLaC" {
		t.Errorf("empty stream = %d frames, % x", enc.Frames, enc.Data[:4])
	}
}
