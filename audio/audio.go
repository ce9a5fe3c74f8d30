package audio

import "strings"

const WAVHeaderSize = 44

// Source selects which side of the audio stack a capture listens to.
type Source int

const (
	// SourceMicrophone is the default input device.
	SourceMicrophone Source = iota
	// SourceDesktop is the loopback of whatever the speakers play.
	SourceDesktop
)

func (s Source) String() string {
	switch s {
	case SourceMicrophone:
		return "microphone"
	case SourceDesktop:
		return "desktop"
	}
	return "unknown"
}

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"jabra", "galaxy buds", "pixel buds",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

// StoppedCallback fires once per Start, after the last DataCallback.
// err is non-nil when the device stopped on its own.
type StoppedCallback func(err error)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	Source     Source
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

// CaptureDevice is one physical or loopback source.
//
// Stop only requests the stop and returns immediately; completion is
// reported through the StoppedCallback on a backend goroutine. It is safe
// to call Stop from inside a DataCallback.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	SetStoppedCallback(cb StoppedCallback)
	DeviceName() string
}
