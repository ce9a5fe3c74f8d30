package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"murmur/audio"
	"murmur/log"

	"github.com/google/uuid"
)

const (
	DefaultMaxDuration = 20 * time.Second
	DefaultMinDuration = 100 * time.Millisecond
	DefaultSampleRate  = 16000
)

// DeviceFactory opens a capture device for a channel. The device is not
// started yet.
type DeviceFactory func(ch Channel) (audio.CaptureDevice, error)

// DevicesFrom maps channels onto an audio context. mic may be nil for the
// system default microphone.
func DevicesFrom(ctx audio.Context, f Format, mic *audio.DeviceInfo) DeviceFactory {
	return func(ch Channel) (audio.CaptureDevice, error) {
		cfg := audio.CaptureConfig{SampleRate: f.SampleRate, Channels: f.Channels}
		switch ch {
		case ChannelMicrophone:
			cfg.Source = audio.SourceMicrophone
			return ctx.NewCapture(mic, cfg)
		case ChannelDesktop:
			cfg.Source = audio.SourceDesktop
			return ctx.NewCapture(nil, cfg)
		}
		return nil, fmt.Errorf("unknown channel %q", ch)
	}
}

type Config struct {
	MaxDuration time.Duration
	MinDuration time.Duration
	Format      Format
}

func (c Config) withDefaults() Config {
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.MinDuration < 0 {
		c.MinDuration = 0
	}
	if c.Format.SampleRate == 0 {
		c.Format.SampleRate = DefaultSampleRate
	}
	if c.Format.Channels == 0 {
		c.Format.Channels = 1
	}
	return c
}

// Result is handed to the completion handler once a session resolves.
type Result struct {
	SessionID string
	Channel   Channel
	Artifact  Artifact
	Err       error
}

type Transition struct {
	SessionID string
	Channel   Channel
	From      State
	To        State
	Reason    Reason
	At        time.Time
}

type Option func(*Machine)

// OnComplete sets the handler for resolved sessions. It runs on the device
// backend goroutine that reported the stop.
func OnComplete(fn func(Result)) Option {
	return func(m *Machine) { m.onComplete = fn }
}

// OnTransition observes every state change.
func OnTransition(fn func(Transition)) Option {
	return func(m *Machine) { m.onTransition = fn }
}

// Machine is the single-flight controller for the capture channels. Each
// channel owns at most one session at a time.
type Machine struct {
	cfg          Config
	devices      DeviceFactory
	sinks        SinkFactory
	onComplete   func(Result)
	onTransition func(Transition)

	mu       sync.Mutex
	sessions map[Channel]*session
	pending  sync.WaitGroup
}

type session struct {
	id        string
	channel   Channel
	startedAt time.Time

	mu       sync.Mutex
	state    State
	device   audio.CaptureDevice
	sink     Sink
	frames   uint64
	writeErr error
	stopErr  error
}

func NewMachine(cfg Config, devices DeviceFactory, sinks SinkFactory, opts ...Option) *Machine {
	if sinks == nil {
		sinks = NewMemorySink
	}
	m := &Machine{
		cfg:      cfg.withDefaults(),
		devices:  devices,
		sinks:    sinks,
		sessions: make(map[Channel]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) Config() Config { return m.cfg }

// State reports the state of the channel's current session, or Idle.
func (m *Machine) State(ch Channel) State {
	m.mu.Lock()
	s := m.sessions[ch]
	m.mu.Unlock()
	if s == nil {
		return StateIdle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (m *Machine) Snapshot() map[Channel]State {
	out := make(map[Channel]State, len(Channels))
	for _, ch := range Channels {
		out[ch] = m.State(ch)
	}
	return out
}

// Begin starts a session on ch. It returns ErrAlreadyActive when the channel
// is busy and a *DeviceUnavailableError when the device or sink could not be
// brought up.
func (m *Machine) Begin(ch Channel) (string, error) {
	if !ch.Valid() {
		return "", &DeviceUnavailableError{Channel: ch, Err: fmt.Errorf("unknown channel")}
	}

	m.mu.Lock()
	if m.sessions[ch] != nil {
		m.mu.Unlock()
		return "", ErrAlreadyActive
	}
	s := &session{
		id:        uuid.NewString(),
		channel:   ch,
		startedAt: time.Now(),
		state:     StateStarting,
	}
	m.sessions[ch] = s
	m.pending.Add(1)
	m.mu.Unlock()
	m.transition(s, StateIdle, StateStarting, ReasonBegin)

	// Data callbacks block on s.mu until the session is Active, so no
	// early frames are lost.
	s.mu.Lock()
	if err := m.open(s); err != nil {
		s.state = StateFailed
		s.mu.Unlock()
		m.discard(s)
		m.transition(s, StateStarting, StateFailed, ReasonStartFailed)
		m.pending.Done()
		return "", &DeviceUnavailableError{Channel: ch, Err: err}
	}
	s.state = StateActive
	s.mu.Unlock()
	m.transition(s, StateStarting, StateActive, ReasonStarted)
	return s.id, nil
}

// open runs with s.mu held. On failure everything acquired is released.
func (m *Machine) open(s *session) error {
	sink, err := m.sinks(s.id, s.channel, m.cfg.Format)
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	dev, err := m.devices(s.channel)
	if err != nil {
		sink.Release()
		return fmt.Errorf("open device: %w", err)
	}
	dev.SetCallback(func(data []byte, frames uint32) { m.onData(s, data, frames) })
	dev.SetStoppedCallback(func(err error) { m.onStopped(s, err) })
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		sink.Release()
		return fmt.Errorf("start device: %w", err)
	}
	s.sink = sink
	s.device = dev
	return nil
}

func (m *Machine) discard(s *session) {
	m.mu.Lock()
	if m.sessions[s.channel] == s {
		delete(m.sessions, s.channel)
	}
	m.mu.Unlock()
}

func (m *Machine) onData(s *session, data []byte, frames uint32) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	reason := Reason("")
	if err := s.sink.Write(data, frames); err != nil {
		s.writeErr = err
		reason = ReasonWriteFailed
	} else {
		s.frames += uint64(frames)
		if m.cfg.Format.duration(s.frames) >= m.cfg.MaxDuration {
			reason = ReasonMaxDuration
		}
	}
	if reason == "" {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	dev := s.device
	s.mu.Unlock()

	m.transition(s, StateActive, StateStopping, reason)
	dev.Stop()
}

// End asks the channel's active session to stop. It reports false when
// there was no Active session, which callers treat as a no-op.
func (m *Machine) End(ch Channel) bool {
	m.mu.Lock()
	s := m.sessions[ch]
	m.mu.Unlock()
	if s == nil {
		return false
	}

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return false
	}
	s.state = StateStopping
	dev := s.device
	s.mu.Unlock()

	m.transition(s, StateActive, StateStopping, ReasonUserStop)
	dev.Stop()
	return true
}

func (m *Machine) onStopped(s *session, devErr error) {
	s.mu.Lock()
	from := s.state
	if from != StateActive && from != StateStopping {
		s.mu.Unlock()
		return
	}
	s.state = StateFinalizing
	s.stopErr = devErr
	s.device.ClearCallback()
	s.mu.Unlock()

	if from == StateActive {
		m.transition(s, StateActive, StateStopping, ReasonDeviceLost)
		from = StateStopping
	}
	m.transition(s, from, StateFinalizing, ReasonFinalized)
	if devErr != nil {
		log.Warnf("%s device stopped with error: %v", s.channel, devErr)
	}

	res := m.finalize(s)

	to, reason := StateCompleted, ReasonFinalized
	switch {
	case errors.Is(res.Err, ErrTooShort):
		reason = ReasonTooShort
	case res.Err != nil:
		to, reason = StateFailed, ReasonFlushFailed
	}
	s.mu.Lock()
	s.state = to
	s.mu.Unlock()

	m.discard(s)
	m.transition(s, StateFinalizing, to, reason)

	if m.onComplete != nil {
		m.onComplete(res)
	}
	m.pending.Done()
}

// finalize flushes and releases the sink, then disposes of the device.
func (m *Machine) finalize(s *session) Result {
	res := Result{SessionID: s.id, Channel: s.channel}

	art, flushErr := s.sink.Flush()
	releaseErr := s.sink.Release()
	s.device.Close()

	switch {
	case s.writeErr != nil:
		res.Err = &FlushError{Channel: s.channel, Err: s.writeErr}
	case flushErr != nil:
		res.Err = &FlushError{Channel: s.channel, Err: flushErr}
	case releaseErr != nil:
		res.Err = &FlushError{Channel: s.channel, Err: releaseErr}
	}
	if res.Err != nil {
		art.Remove()
		return res
	}

	if art.Duration < m.cfg.MinDuration {
		art.Remove()
		res.Err = ErrTooShort
		return res
	}
	res.Artifact = art
	return res
}

func (m *Machine) transition(s *session, from, to State, reason Reason) {
	log.SessionTransition(s.id, string(s.channel), string(from), string(to), string(reason))
	if m.onTransition != nil {
		m.onTransition(Transition{
			SessionID: s.id,
			Channel:   s.channel,
			From:      from,
			To:        to,
			Reason:    reason,
			At:        time.Now(),
		})
	}
}

// Close stops every active session and waits up to timeout for them to
// finalize. It reports whether they all did.
func (m *Machine) Close(timeout time.Duration) bool {
	for _, ch := range Channels {
		m.End(ch)
	}
	done := make(chan struct{})
	go func() {
		m.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
