package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "chatbot.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateThreadUniqueIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		th, err := s.CreateThread(ctx, "")
		if err != nil {
			t.Fatalf("create thread: %v", err)
		}
		if th.ID == "" {
			t.Fatalf("empty thread id")
		}
		if seen[th.ID] {
			t.Fatalf("duplicate thread id: %s", th.ID)
		}
		seen[th.ID] = true
	}
}

func TestAppendAndListPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	th, err := s.CreateThread(ctx, "")
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}

	var want []string
	for i := 0; i < 10; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		content := fmt.Sprintf("message %d", i)
		if _, err := s.AppendMessage(ctx, th.ID, role, content); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		want = append(want, content)
	}

	msgs, err := s.ListMessages(ctx, th.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != len(want) {
		t.Fatalf("unexpected count: got %d want %d", len(msgs), len(want))
	}
	for i, m := range msgs {
		if m.Content != want[i] {
			t.Fatalf("order broken at %d: got %q want %q", i, m.Content, want[i])
		}
		if i > 0 && msgs[i].Seq <= msgs[i-1].Seq {
			t.Fatalf("seq not increasing at %d", i)
		}
	}
}

func TestReadAfterWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	th, err := s.CreateThread(ctx, "")
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	if _, err := s.AppendMessage(ctx, th.ID, RoleUser, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	msgs, err := s.ListMessages(ctx, th.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != RoleUser || msgs[0].Content != "hello" {
		t.Fatalf("appended message not reflected: %+v", msgs)
	}
}

func TestListMessagesEmptyThread(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	th, err := s.CreateThread(ctx, "")
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	msgs, err := s.ListMessages(ctx, th.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty history, got %d", len(msgs))
	}
}

func TestAppendUnknownThread(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AppendMessage(ctx, "no-such-thread", RoleUser, "hi"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}
	if _, err := s.ListMessages(ctx, "no-such-thread"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}
}

func TestAppendInvalidRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	th, err := s.CreateThread(ctx, "")
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	if _, err := s.AppendMessage(ctx, th.ID, "narrator", "hm"); err == nil {
		t.Fatalf("expected error for invalid role")
	}
}

func TestListThreadsMostRecentFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateThread(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := s.CreateThread(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	// Activity on the older thread moves it back to the front.
	if _, err := s.AppendMessage(ctx, first.ID, RoleUser, "ping"); err != nil {
		t.Fatalf("append: %v", err)
	}

	threads, err := s.ListThreads(ctx)
	if err != nil {
		t.Fatalf("list threads: %v", err)
	}
	if len(threads) != 2 {
		t.Fatalf("unexpected thread count: %d", len(threads))
	}
	if threads[0].ID != first.ID || threads[1].ID != second.ID {
		t.Fatalf("unexpected order: %s, %s", threads[0].ID, threads[1].ID)
	}
}

func TestFirstUserMessageBecomesTitle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	th, err := s.CreateThread(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.AppendMessage(ctx, th.ID, RoleUser, "what is the capital of France?"); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := s.GetThread(ctx, th.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "what is the capital of France?" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
}

func TestAppendExchangeAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	th, err := s.CreateThread(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	msgs, err := s.AppendExchange(ctx, th.ID, "hello", "hi there")
	if err != nil {
		t.Fatalf("append exchange: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Fatalf("unexpected exchange: %+v", msgs)
	}

	if _, err := s.AppendExchange(ctx, "missing", "a", "b"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}
}

func TestDeleteThreadCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	th, err := s.CreateThread(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.AppendMessage(ctx, th.ID, RoleUser, "bye"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.DeleteThread(ctx, th.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.ListMessages(ctx, th.ID); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound after delete, got %v", err)
	}
	if err := s.DeleteThread(ctx, th.ID); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound on double delete, got %v", err)
	}
}

func TestPruneThreadsIdleSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old, err := s.CreateThread(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	cutoff := time.Now()
	time.Sleep(10 * time.Millisecond)
	fresh, err := s.CreateThread(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := s.PruneThreadsIdleSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned thread, got %d", n)
	}
	if _, err := s.GetThread(ctx, old.ID); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("old thread should be gone, got %v", err)
	}
	if _, err := s.GetThread(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh thread should survive: %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatbot.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	th, err := s.CreateThread(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.AppendMessage(ctx, th.ID, RoleUser, "persist me"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	msgs, err := s2.ListMessages(ctx, th.ID)
	if err != nil {
		t.Fatalf("list after reopen: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "persist me" {
		t.Fatalf("data lost across reopen: %+v", msgs)
	}
}
