package chat

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/zhouzirui/realty-assistant/backend/internal/model/chat"
)

const (
	DefaultHistoryWindow     = 10
	DefaultGenerationTimeout = 30 * time.Second
)

// Generator produces the assistant reply for a bounded conversation window.
type Generator interface {
	Generate(ctx context.Context, history []chat.Turn) (string, error)
}

// Renderer turns generated markdown into markup safe for display.
type Renderer interface {
	Render(markdown string) string
}

// Options tunes the exchange behaviour.
type Options struct {
	HistoryWindow     int
	GenerationTimeout time.Duration
}

// Service runs chat exchanges on top of the session store.
type Service struct {
	store     *Store
	generator Generator
	renderer  Renderer
	window    int
	timeout   time.Duration
}

// NewService wires the store with a generation backend and a renderer.
// A nil generator makes every exchange fail with ErrGenerationFailed.
func NewService(store *Store, generator Generator, renderer Renderer, opts Options) *Service {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = DefaultGenerationTimeout
	}
	return &Service{
		store:     store,
		generator: generator,
		renderer:  renderer,
		window:    opts.HistoryWindow,
		timeout:   opts.GenerationTimeout,
	}
}

// Exchange appends the user message, asks the backend for a reply and records it.
// The user turn is committed before generation, so a failure leaves the history
// ending on that turn.
func (s *Service) Exchange(ctx context.Context, message, sessionID string) (chat.Reply, error) {
	sessionID, created := s.store.GetOrCreate(sessionID)
	if created {
		log.Printf("[chat] opened session=%s", sessionID)
	}

	if err := s.store.Append(sessionID, chat.NewTurn(chat.RoleUser, message)); err != nil {
		return chat.Reply{}, fmt.Errorf("append user turn: %w", err)
	}

	window := s.store.RecentWindow(sessionID, s.window)

	raw, err := s.generate(ctx, window)
	if err != nil {
		log.Printf("[chat] generation failed for session=%s: %v", sessionID, err)
		return chat.Reply{}, err
	}

	if err := s.store.Append(sessionID, chat.NewTurn(chat.RoleAssistant, raw)); err != nil {
		return chat.Reply{}, fmt.Errorf("append assistant turn: %w", err)
	}

	return chat.Reply{
		Response:     raw,
		ResponseHTML: s.render(raw),
		SessionID:    sessionID,
	}, nil
}

// History returns the full transcript; unknown sessions yield an empty slice.
func (s *Service) History(_ context.Context, sessionID string) []chat.Turn {
	return s.store.History(sessionID)
}

// Clear drops a session and reports whether it existed.
func (s *Service) Clear(_ context.Context, sessionID string) bool {
	found := s.store.Clear(sessionID)
	if found {
		log.Printf("[chat] cleared session=%s", sessionID)
	}
	return found
}

func (s *Service) generate(ctx context.Context, window []chat.Turn) (string, error) {
	if s.generator == nil {
		return "", fmt.Errorf("%w: no generation backend configured", ErrGenerationFailed)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.generator.Generate(genCtx, window)
	if err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: timed out after %s: %v", ErrGenerationFailed, s.timeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGenerationFailed)
	}
	return raw, nil
}

func (s *Service) render(raw string) string {
	if s.renderer == nil {
		return "<p>" + html.EscapeString(raw) + "</p>"
	}
	return s.renderer.Render(raw)
}
