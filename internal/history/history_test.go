package history

import (
	"testing"

	"threadchat/internal/llm"
)

func TestHistoryAppendGetReset(t *testing.T) {
	h := NewManager()
	threadA := "thread-a"
	threadB := "thread-b"

	h.AppendUser(threadA, "hello")
	h.AppendAssistant(threadA, "hi")
	h.AppendUser(threadB, "foo")
	h.AppendAssistant(threadB, "bar")

	msgsA := h.Get(threadA)
	msgsB := h.Get(threadB)

	if len(msgsA) != 2 || len(msgsB) != 2 {
		t.Fatalf("unexpected lengths: A=%d B=%d", len(msgsA), len(msgsB))
	}
	if msgsA[0].Role != "user" || msgsA[0].Content != "hello" {
		t.Fatalf("unexpected A[0]: %+v", msgsA[0])
	}
	if msgsA[1].Role != "assistant" || msgsA[1].Content != "hi" {
		t.Fatalf("unexpected A[1]: %+v", msgsA[1])
	}

	// Ensure copy semantics (modifying returned slice does not affect internal state)
	msgsA[0] = llm.Message{Role: "user", Content: "mutated"}
	msgsA2 := h.Get(threadA)
	if msgsA2[0].Content != "hello" {
		t.Fatalf("internal state mutated via returned slice")
	}

	h.Reset(threadA)
	if len(h.Get(threadA)) != 0 {
		t.Fatalf("reset did not clear thread A")
	}
	if len(h.Get(threadB)) != 2 {
		t.Fatalf("reset should not affect other threads")
	}
}

func TestHistorySeed(t *testing.T) {
	h := NewManager()
	threadID := "thread-seeded"

	if h.Has(threadID) {
		t.Fatalf("unexpected working copy before seed")
	}

	seed := []llm.Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
	}
	h.Seed(threadID, seed)

	if !h.Has(threadID) {
		t.Fatalf("expected working copy after seed")
	}

	// Mutating the seed slice must not leak into the manager.
	seed[0].Content = "mutated"
	got := h.Get(threadID)
	if len(got) != 2 || got[0].Content != "first" {
		t.Fatalf("seed not copied: %+v", got)
	}

	h.AppendUser(threadID, "third")
	if len(h.Get(threadID)) != 3 {
		t.Fatalf("append after seed failed")
	}
}
