package encoding

import "testing"

func TestMultiSinkFansOutAndSkipsNil(t *testing.T) {
	var first, second Recorder
	sinks := []Sink{&first, nil}
	sinks = append(sinks, &second)
	sink := MultiSink(sinks...)

	sink.Emit(Event{Type: EventLog, Message: "hello"})
	sink.Emit(Event{Type: EventLog, Level: LevelWarn, Message: "careful"})

	for name, r := range map[string]*Recorder{"first": &first, "second": &second} {
		got := r.Events()
		if len(got) != 2 || got[0].Message != "hello" || got[1].Message != "careful" {
			t.Fatalf("%s sink events = %+v", name, got)
		}
	}
}
