package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"threadchat/internal/storage"
)

// DailyStats aggregates chat usage for one day.
type DailyStats struct {
	Date             string                 `json:"date"`
	TotalMessages    int                    `json:"total_messages"`
	ActiveThreads    int                    `json:"active_threads"`
	PromptTokens     int                    `json:"prompt_tokens"`
	CompletionTokens int                    `json:"completion_tokens"`
	TotalTokens      int                    `json:"total_tokens"`
	ThreadStats      map[string]ThreadStats `json:"thread_stats"`
}

type ThreadStats struct {
	ThreadID    string `json:"thread_id"`
	Messages    int    `json:"messages"`
	TotalTokens int    `json:"total_tokens"`
}

// AnalyzeDailyLogs computes usage stats for the day containing targetDate.
func AnalyzeDailyLogs(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:        startOfDay.Format("2006-01-02"),
		ThreadStats: make(map[string]ThreadStats),
	}

	for _, event := range events {
		if event.Timestamp.Before(startOfDay) || !event.Timestamp.Before(endOfDay) {
			continue
		}
		if event.UserMessage == "" {
			continue
		}

		stats.TotalMessages++
		stats.PromptTokens += event.PromptTokens
		stats.CompletionTokens += event.CompletionTokens
		stats.TotalTokens += event.TotalTokens

		ts := stats.ThreadStats[event.ThreadID]
		ts.ThreadID = event.ThreadID
		ts.Messages++
		ts.TotalTokens += event.TotalTokens
		stats.ThreadStats[event.ThreadID] = ts
	}

	stats.ActiveThreads = len(stats.ThreadStats)
	return stats
}

// Summary renders a human-readable report for logs.
func (ds *DailyStats) Summary() string {
	s := fmt.Sprintf("Chat usage for %s: %d messages across %d threads, %d tokens (prompt=%d, completion=%d)\n",
		ds.Date, ds.TotalMessages, ds.ActiveThreads, ds.TotalTokens, ds.PromptTokens, ds.CompletionTokens)

	ids := make([]string, 0, len(ds.ThreadStats))
	for id := range ds.ThreadStats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ts := ds.ThreadStats[id]
		s += fmt.Sprintf("- thread %s: %d messages, %d tokens\n", ts.ThreadID, ts.Messages, ts.TotalTokens)
	}
	return s
}

func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
