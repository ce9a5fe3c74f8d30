// Package encoder compresses finished recordings for upload.
package encoder

import "time"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Encoded is one compressed recording.
type Encoded struct {
	Data   []byte
	Format string
	Frames uint64
	Took   time.Duration
}
