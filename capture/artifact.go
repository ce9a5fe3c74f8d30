package capture

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// Artifact is the finished recording of one session. Exactly one of PCM
// and Path is set, depending on the sink that produced it.
type Artifact struct {
	SessionID  string
	Channel    Channel
	SampleRate uint32
	Channels   uint32
	Duration   time.Duration
	PCM        []byte // 16-bit little-endian
	Path       string // WAV file
}

// Samples returns the recording as 16-bit samples, reading the WAV file for
// file-backed artifacts.
func (a Artifact) Samples() ([]int16, error) {
	if a.Path == "" {
		samples := make([]int16, len(a.PCM)/2)
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(a.PCM[i*2:]))
		}
		return samples, nil
	}

	f, err := os.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("artifact %s: not a valid wav file", a.Path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return samples, nil
}

// Remove deletes the backing file, if any.
func (a Artifact) Remove() error {
	if a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
