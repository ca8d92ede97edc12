package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"threadchat/internal/history"
	"threadchat/internal/llm"
	"threadchat/internal/storage"
	"threadchat/internal/store"
)

// ErrModel marks a failed language-model invocation. Storage failures
// pass through as store errors, so callers can tell the two kinds apart.
var ErrModel = fmt.Errorf("model invocation failed")

// Store is what the dispatcher needs from the persistence layer.
type Store interface {
	GetThread(ctx context.Context, threadID string) (store.Thread, error)
	AppendMessage(ctx context.Context, threadID, role, content string) (store.Message, error)
	ListMessages(ctx context.Context, threadID string) ([]store.Message, error)
}

type Reply struct {
	User      store.Message
	Assistant store.Message

	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Dispatcher runs one chat round trip: persist the user message, build
// the model context from the thread history, invoke the model, persist
// the reply. No retries; failures surface to the caller.
type Dispatcher struct {
	store        Store
	client       llm.Client
	systemPrompt string
	historyLimit int
	cache        *history.Manager
	recorder     storage.Recorder
}

type Option func(*Dispatcher)

// WithSystemPrompt prepends a system message to every model context.
func WithSystemPrompt(prompt string) Option {
	return func(d *Dispatcher) { d.systemPrompt = prompt }
}

// WithHistoryLimit caps the context to the n most recent messages.
// Zero means the full history is sent.
func WithHistoryLimit(n int) Option {
	return func(d *Dispatcher) { d.historyLimit = n }
}

// WithRecorder logs completed exchanges to a usage recorder, best-effort.
func WithRecorder(r storage.Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

func New(st Store, client llm.Client, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:  st,
		client: client,
		cache:  history.NewManager(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Send handles one user message on a thread and returns the assistant
// reply. The user message is persisted before the model call, so a model
// failure leaves it in place and the user can simply retry.
func (d *Dispatcher) Send(ctx context.Context, threadID, text string) (Reply, error) {
	userMsg, err := d.store.AppendMessage(ctx, threadID, store.RoleUser, text)
	if err != nil {
		return Reply{}, err
	}

	if d.cache.Has(threadID) {
		d.cache.AppendUser(threadID, text)
	} else if err := d.seedCache(ctx, threadID); err != nil {
		return Reply{}, err
	}

	resp, err := d.client.Generate(ctx, d.buildContext(threadID))
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrModel, err)
	}

	assistantMsg, err := d.store.AppendMessage(ctx, threadID, store.RoleAssistant, resp.Content)
	if err != nil {
		return Reply{}, err
	}
	d.cache.AppendAssistant(threadID, resp.Content)

	d.record(threadID, text, resp)

	return Reply{
		User:             userMsg,
		Assistant:        assistantMsg,
		Model:            resp.Model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TotalTokens,
	}, nil
}

// Forget drops the in-memory working copy for a thread. Call after a
// thread is deleted so a stale copy cannot resurface.
func (d *Dispatcher) Forget(threadID string) {
	d.cache.Reset(threadID)
}

func (d *Dispatcher) seedCache(ctx context.Context, threadID string) error {
	stored, err := d.store.ListMessages(ctx, threadID)
	if err != nil {
		return err
	}
	msgs := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	d.cache.Seed(threadID, msgs)
	return nil
}

func (d *Dispatcher) buildContext(threadID string) []llm.Message {
	hist := d.cache.Get(threadID)
	if d.historyLimit > 0 && len(hist) > d.historyLimit {
		hist = hist[len(hist)-d.historyLimit:]
	}
	var msgs []llm.Message
	if d.systemPrompt != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: d.systemPrompt})
	}
	return append(msgs, hist...)
}

func (d *Dispatcher) record(threadID, text string, resp llm.Response) {
	if d.recorder == nil {
		return
	}
	err := d.recorder.AppendInteraction(storage.Event{
		Timestamp:         time.Now().UTC(),
		ThreadID:          threadID,
		UserMessage:       text,
		AssistantResponse: resp.Content,
		Model:             resp.Model,
		PromptTokens:      resp.PromptTokens,
		CompletionTokens:  resp.CompletionTokens,
		TotalTokens:       resp.TotalTokens,
	})
	if err != nil {
		log.Printf("failed to record interaction: %v", err)
	}
}
