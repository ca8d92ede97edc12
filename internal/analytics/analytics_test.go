package analytics

import (
	"testing"
	"time"

	"threadchat/internal/storage"
)

func TestAnalyzeDailyLogs(t *testing.T) {
	day := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	events := []storage.Event{
		{Timestamp: day.Add(-30 * time.Hour), ThreadID: "t-old", UserMessage: "yesterday", TotalTokens: 5},
		{Timestamp: day, ThreadID: "t-1", UserMessage: "hi", AssistantResponse: "hello", PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
		{Timestamp: day.Add(time.Hour), ThreadID: "t-1", UserMessage: "more", TotalTokens: 9},
		{Timestamp: day.Add(2 * time.Hour), ThreadID: "t-2", UserMessage: "other", TotalTokens: 2},
		// System record without a user message must not be counted.
		{Timestamp: day.Add(3 * time.Hour), ThreadID: "t-2", AssistantResponse: "[maintenance]"},
	}

	stats := AnalyzeDailyLogs(events, day)

	if stats.Date != "2025-03-10" {
		t.Fatalf("unexpected date: %s", stats.Date)
	}
	if stats.TotalMessages != 3 {
		t.Fatalf("unexpected message count: %d", stats.TotalMessages)
	}
	if stats.ActiveThreads != 2 {
		t.Fatalf("unexpected active threads: %d", stats.ActiveThreads)
	}
	if stats.TotalTokens != 18 {
		t.Fatalf("unexpected total tokens: %d", stats.TotalTokens)
	}
	if ts := stats.ThreadStats["t-1"]; ts.Messages != 2 || ts.TotalTokens != 16 {
		t.Fatalf("unexpected t-1 stats: %+v", ts)
	}
	if ts := stats.ThreadStats["t-2"]; ts.Messages != 1 || ts.TotalTokens != 2 {
		t.Fatalf("unexpected t-2 stats: %+v", ts)
	}
}

func TestSummaryAndJSON(t *testing.T) {
	day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	stats := AnalyzeDailyLogs([]storage.Event{
		{Timestamp: day, ThreadID: "t-1", UserMessage: "hi", TotalTokens: 7},
	}, day)

	summary := stats.Summary()
	if summary == "" {
		t.Fatalf("empty summary")
	}

	js, err := stats.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	if js == "" {
		t.Fatalf("empty json")
	}
}
