package audio

import (
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext hands out FakeCaptures that play back a fixed PCM buffer.
type FakeContext struct {
	pcm      []byte
	realtime bool

	mu       sync.Mutex
	captures []*FakeCapture
	startErr error
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return &FakeContext{pcm: data, realtime: realtime}, nil
}

// NewFakeContextPCM plays back raw 16-bit mono PCM.
func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return nil, nil }
func (f *FakeContext) Close()                         {}

// FailStart makes every later capture fail in Start with err.
func (f *FakeContext) FailStart(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := NewFakeCapture(f.pcm, config.SampleRate, f.realtime)
	c.StartErr = f.startErr
	f.captures = append(f.captures, c)
	return c, nil
}

// Captures returns every capture created so far.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

type FakeCapture struct {
	StartErr error

	pcm        []byte
	sampleRate uint32
	realtime   bool

	mu        sync.Mutex
	cb        DataCallback
	stoppedCb StoppedCallback
	stopCh    chan struct{}
	feedDone  chan struct{}
	stopOnce  *sync.Once

	starts atomic.Int32
	stops  atomic.Int32
	closes atomic.Int32
}

func NewFakeCapture(pcm []byte, sampleRate uint32, realtime bool) *FakeCapture {
	if sampleRate == 0 {
		sampleRate = 16000
	}
	return &FakeCapture{pcm: pcm, sampleRate: sampleRate, realtime: realtime}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) SetStoppedCallback(cb StoppedCallback) {
	f.mu.Lock()
	f.stoppedCb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) Starts() int { return int(f.starts.Load()) }
func (f *FakeCapture) Stops() int  { return int(f.stops.Load()) }
func (f *FakeCapture) Closes() int { return int(f.closes.Load()) }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

// Emit delivers one buffer as if the device had produced it.
func (f *FakeCapture) Emit(data []byte) {
	if cb := f.callback(); cb != nil {
		cb(data, uint32(len(data)/fakeBytesPerFrame))
	}
}

func (f *FakeCapture) Start() error {
	f.starts.Add(1)
	if f.StartErr != nil {
		return f.StartErr
	}
	stopCh := make(chan struct{})
	feedDone := make(chan struct{})
	f.mu.Lock()
	f.stopCh = stopCh
	f.feedDone = feedDone
	f.stopOnce = &sync.Once{}
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	interval := time.Millisecond
	if f.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(f.sampleRate)
	}

	go func() {
		defer close(feedDone)
		pos := 0
		silence := make([]byte, chunkBytes)
		for {
			select {
			case <-stopCh:
				return
			case <-time.After(interval):
			}
			cb := f.callback()
			if cb == nil {
				continue
			}
			if pos < len(f.pcm) {
				end := min(pos+chunkBytes, len(f.pcm))
				chunk := make([]byte, end-pos)
				copy(chunk, f.pcm[pos:end])
				pos = end
				cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
			} else if f.realtime {
				cb(silence, fakeFrameSize)
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.finish(nil)
}

// Fail simulates the device dying underneath an active capture.
func (f *FakeCapture) Fail(err error) {
	f.finish(err)
}

func (f *FakeCapture) finish(err error) {
	f.mu.Lock()
	once, stopCh, feedDone := f.stopOnce, f.stopCh, f.feedDone
	f.mu.Unlock()
	if once == nil {
		return
	}
	once.Do(func() {
		f.stops.Add(1)
		close(stopCh)
		go func() {
			<-feedDone
			f.mu.Lock()
			cb := f.stoppedCb
			f.mu.Unlock()
			if cb != nil {
				cb(err)
			}
		}()
	})
}

func (f *FakeCapture) Close() {
	f.closes.Add(1)
}
