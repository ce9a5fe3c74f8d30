package capture

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func ramp(n int) []byte {
	b := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(int16(i*7-300)))
	}
	return b
}

func TestWAVSinkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := Format{SampleRate: 16000, Channels: 1}
	sink, err := WAVSinkFactory(dir)("0123456789abcdef", ChannelMicrophone, f)
	if err != nil {
		t.Fatal(err)
	}

	data := ramp(800)
	if err := sink.Write(data[:800], 400); err != nil {
		t.Fatal(err)
	}
	if err := sink.Write(data[800:], 400); err != nil {
		t.Fatal(err)
	}
	art, err := sink.Flush()
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Release(); err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(filepath.Base(art.Path), "recording_microphone_") {
		t.Errorf("unexpected file name %q", art.Path)
	}
	if art.Duration != 50*time.Millisecond {
		t.Errorf("duration = %v, want 50ms", art.Duration)
	}

	samples, err := art.Samples()
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 800 {
		t.Fatalf("samples = %d, want 800", len(samples))
	}
	for i, s := range samples {
		if want := int16(i*7 - 300); s != want {
			t.Fatalf("sample %d = %d, want %d", i, s, want)
		}
	}

	if err := art.Remove(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(art.Path); !os.IsNotExist(err) {
		t.Errorf("artifact file still exists: %v", err)
	}
}

func TestWAVSinkReleaseWithoutFlushDeletes(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewWAVSink(filepath.Join(dir, "x.wav"), "id", ChannelDesktop, Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	sink.Write(ramp(10), 10)
	if err := sink.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(sink.Path()); !os.IsNotExist(err) {
		t.Errorf("unflushed recording kept: %v", err)
	}
	if err := sink.Release(); err == nil {
		t.Error("second Release should fail")
	}
}

func TestWAVSinkFailedFlushRemovesFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewWAVSink(filepath.Join(dir, "x.wav"), "id", ChannelMicrophone, Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Write(ramp(10), 10); err != nil {
		t.Fatal(err)
	}
	// the encoder cannot seek back to patch the header on a closed file
	sink.file.Close()

	art, err := sink.Flush()
	if err == nil {
		t.Fatal("Flush on a closed file should fail")
	}
	if art.Path != "" {
		t.Errorf("failed Flush returned artifact %+v", art)
	}
	if _, err := os.Stat(sink.Path()); !os.IsNotExist(err) {
		t.Errorf("partial recording kept: %v", err)
	}
	if _, err := sink.Flush(); err == nil {
		t.Error("second Flush should keep failing")
	}
	if err := sink.Release(); err != nil {
		t.Errorf("Release after failed Flush: %v", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("recording dir not empty: %d entries", len(entries))
	}
}

func TestMemorySinkSamples(t *testing.T) {
	sink, _ := NewMemorySink("id", ChannelMicrophone, Format{SampleRate: 8000, Channels: 1})
	sink.Write(ramp(80), 80)
	art, err := sink.Flush()
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Write(ramp(1), 1); err == nil {
		t.Error("write after flush should fail")
	}
	samples, _ := art.Samples()
	if len(samples) != 80 || samples[1] != -293 {
		t.Errorf("samples = %d, first = %v", len(samples), samples[:2])
	}
	if art.Duration != 10*time.Millisecond {
		t.Errorf("duration = %v, want 10ms", art.Duration)
	}
}
