package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Format describes the PCM stream a sink receives.
type Format struct {
	SampleRate uint32
	Channels   uint32
}

func (f Format) duration(frames uint64) time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Sink persists the frames of one session. Flush turns what was written
// into an Artifact; Release frees whatever the sink still holds. The
// machine calls Release exactly once per sink, after Flush when Flush ran.
type Sink interface {
	Write(pcm []byte, frames uint32) error
	Flush() (Artifact, error)
	Release() error
}

// SinkFactory opens a fresh sink for a session.
type SinkFactory func(sessionID string, ch Channel, f Format) (Sink, error)

var errSinkClosed = errors.New("sink closed")

// MemorySink keeps the whole recording in memory.
type MemorySink struct {
	id     string
	ch     Channel
	format Format

	mu       sync.Mutex
	buf      bytes.Buffer
	frames   uint64
	flushed  bool
	released bool
}

func NewMemorySink(sessionID string, ch Channel, f Format) (Sink, error) {
	return &MemorySink{id: sessionID, ch: ch, format: f}, nil
}

func (s *MemorySink) Write(pcm []byte, frames uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushed || s.released {
		return errSinkClosed
	}
	s.buf.Write(pcm)
	s.frames += uint64(frames)
	return nil
}

func (s *MemorySink) Flush() (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return Artifact{}, errSinkClosed
	}
	s.flushed = true
	pcm := make([]byte, s.buf.Len())
	copy(pcm, s.buf.Bytes())
	return Artifact{
		SessionID:  s.id,
		Channel:    s.ch,
		SampleRate: s.format.SampleRate,
		Channels:   s.format.Channels,
		Duration:   s.format.duration(s.frames),
		PCM:        pcm,
	}, nil
}

func (s *MemorySink) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return errSinkClosed
	}
	s.released = true
	s.buf = bytes.Buffer{}
	return nil
}

// WAVSink streams the recording into a 16-bit WAV file.
type WAVSink struct {
	id     string
	ch     Channel
	format Format
	path   string

	mu       sync.Mutex
	file     *os.File
	enc      *wav.Encoder
	frames   uint64
	flushed  bool
	released bool
	// failed is set when Flush could not finish the file and removed it
	failed error
}

// WAVSinkFactory writes recordings under dir as
// recording_<channel>_<yyyyMMdd_HHmmss>_<id>.wav.
func WAVSinkFactory(dir string) SinkFactory {
	return func(sessionID string, ch Channel, f Format) (Sink, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create recording dir: %w", err)
		}
		short := sessionID
		if len(short) > 8 {
			short = short[:8]
		}
		name := fmt.Sprintf("recording_%s_%s_%s.wav", ch, time.Now().Format("20060102_150405"), short)
		return NewWAVSink(filepath.Join(dir, name), sessionID, ch, f)
	}
}

func NewWAVSink(path, sessionID string, ch Channel, f Format) (*WAVSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	return &WAVSink{
		id:     sessionID,
		ch:     ch,
		format: f,
		path:   path,
		file:   file,
		enc:    wav.NewEncoder(file, int(f.SampleRate), 16, int(f.Channels), 1),
	}, nil
}

func (s *WAVSink) Path() string { return s.path }

func (s *WAVSink) Write(pcm []byte, frames uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushed || s.released {
		return errSinkClosed
	}
	data := make([]int, len(pcm)/2)
	for i := range data {
		data[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(s.format.Channels),
			SampleRate:  int(s.format.SampleRate),
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := s.enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	s.frames += uint64(frames)
	return nil
}

func (s *WAVSink) Flush() (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return Artifact{}, errSinkClosed
	}
	if s.failed != nil {
		return Artifact{}, s.failed
	}
	if !s.flushed {
		if err := s.enc.Close(); err != nil {
			s.discard(fmt.Errorf("finalize wav: %w", err))
			return Artifact{}, s.failed
		}
		if err := s.file.Close(); err != nil {
			s.discard(fmt.Errorf("close wav: %w", err))
			return Artifact{}, s.failed
		}
		s.flushed = true
	}
	return Artifact{
		SessionID:  s.id,
		Channel:    s.ch,
		SampleRate: s.format.SampleRate,
		Channels:   s.format.Channels,
		Duration:   s.format.duration(s.frames),
		Path:       s.path,
	}, nil
}

// discard drops a half-written file. Called with mu held.
func (s *WAVSink) discard(err error) {
	s.failed = err
	s.file.Close()
	if rerr := os.Remove(s.path); rerr != nil && !os.IsNotExist(rerr) {
		s.failed = fmt.Errorf("%w (remove: %v)", err, rerr)
	}
}

// Release closes the file. An unflushed recording is deleted; a flushed
// one now belongs to its artifact.
func (s *WAVSink) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return errSinkClosed
	}
	s.released = true
	if s.flushed || s.failed != nil {
		return nil
	}
	s.file.Close()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
