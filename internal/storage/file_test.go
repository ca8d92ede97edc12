package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFileRecorderAppendLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "usage.jsonl")
	r, err := NewFileRecorder(path)
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}

	ev1 := Event{
		Timestamp:         time.Now().UTC().Truncate(time.Second),
		ThreadID:          "t-1",
		UserMessage:       "hello",
		AssistantResponse: "hi",
		Model:             "gpt-3.5-turbo",
		TotalTokens:       12,
	}
	ev2 := Event{
		Timestamp:         ev1.Timestamp.Add(time.Second),
		ThreadID:          "t-2",
		UserMessage:       "foo",
		AssistantResponse: "bar",
	}

	if err := r.AppendInteraction(ev1); err != nil {
		t.Fatalf("append ev1: %v", err)
	}
	if err := r.AppendInteraction(ev2); err != nil {
		t.Fatalf("append ev2: %v", err)
	}

	events, err := r.LoadInteractions()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("unexpected event count: %d", len(events))
	}
	if events[0].ThreadID != "t-1" || events[0].TotalTokens != 12 {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].ThreadID != "t-2" || events[1].AssistantResponse != "bar" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}
