package encoder

import (
	"bytes"
	"fmt"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// FLAC encodes 16-bit mono samples in BlockSize frames. A zero rate means
// SampleRate.
func FLAC(samples []int16, sampleRate uint32) (Encoded, error) {
	if sampleRate == 0 {
		sampleRate = SampleRate
	}
	start := time.Now()

	var buf bytes.Buffer
	enc, err := flac.NewEncoder(&buf, &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    sampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
		NSamples:      uint64(len(samples)),
	})
	if err != nil {
		return Encoded{}, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)

	block := make([]int32, BlockSize)
	for off := 0; off < len(samples); off += BlockSize {
		n := min(BlockSize, len(samples)-off)
		for i, s := range samples[off : off+n] {
			block[i] = int32(s)
		}
		err := enc.WriteFrame(&frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(n),
				SampleRate:    sampleRate,
				Channels:      frame.ChannelsMono,
				BitsPerSample: BitsPerSample,
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   block[:n:n],
				NSamples:  n,
			}},
		})
		if err != nil {
			return Encoded{}, fmt.Errorf("writing flac frame at %d: %w", off, err)
		}
	}
	if err := enc.Close(); err != nil {
		return Encoded{}, fmt.Errorf("closing flac stream: %w", err)
	}
	return Encoded{
		Data:   buf.Bytes(),
		Format: "flac",
		Frames: uint64(len(samples)),
		Took:   time.Since(start),
	}, nil
}
