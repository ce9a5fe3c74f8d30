package main

import (
	"murmur/capture"
	"murmur/pipeline"
)

// EventSink abstracts the display layer so the terminal UI, the GUI and the
// headless driver receive the same events. The overlay content itself goes
// through the gate's surfaces, not through here.
type EventSink interface {
	Status(text string)
	Recording(ch capture.Channel, on bool)
	Detection(suspected bool, match string)
	Answered(r pipeline.Record)
}

type nopSink struct{}

func (nopSink) Status(string)                   {}
func (nopSink) Recording(capture.Channel, bool) {}
func (nopSink) Detection(bool, string)          {}
func (nopSink) Answered(pipeline.Record)        {}
