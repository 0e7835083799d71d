package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"shop-assistant-go/internal/model"
	"shop-assistant-go/internal/repository"
)

// fakeChatRepo 是内存版 ChatRepository。
type fakeChatRepo struct {
	mu       sync.Mutex
	sessions map[string]model.ChatSession
	messages []model.ChatMessage
	err      error
}

func newFakeChatRepo(sessions ...model.ChatSession) *fakeChatRepo {
	r := &fakeChatRepo{sessions: map[string]model.ChatSession{}}
	for _, s := range sessions {
		r.sessions[s.SessionID] = s
	}
	return r
}

func (r *fakeChatRepo) CreateSession(_ context.Context, firstPrompt string) (*model.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := model.ChatSession{SessionID: fmt.Sprintf("s%d", len(r.sessions)+1), Title: model.ClipTitle(firstPrompt), CreatedAt: time.Now()}
	r.sessions[s.SessionID] = s
	return &s, nil
}

func (r *fakeChatRepo) GetSession(_ context.Context, sessionID string) (*model.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrSessionNotFound, sessionID)
	}
	return &s, nil
}

func (r *fakeChatRepo) AppendMessage(_ context.Context, msg *model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeChatRepo) ListMessages(_ context.Context, sessionID string) ([]model.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ChatMessage
	for _, m := range r.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeChatRepo) ListSessions(_ context.Context) ([]model.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]model.ChatSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeChatRepo) DeleteSession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", repository.ErrSessionNotFound, sessionID)
	}
	delete(r.sessions, sessionID)
	kept := r.messages[:0]
	for _, m := range r.messages {
		if m.SessionID != sessionID {
			kept = append(kept, m)
		}
	}
	r.messages = kept
	return nil
}

func (r *fakeChatRepo) DeleteSessionsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// fakeStopRepo 在进程内模拟 Redis 的发布订阅。
type fakeStopRepo struct {
	mu       sync.Mutex
	watchers map[string][]func()
	watchErr error
}

func newFakeStopRepo() *fakeStopRepo {
	return &fakeStopRepo{watchers: map[string][]func(){}}
}

func (r *fakeStopRepo) PublishStop(_ context.Context, sessionID string) (int64, error) {
	r.mu.Lock()
	fns := r.watchers[sessionID]
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return int64(len(fns)), nil
}

func (r *fakeStopRepo) WatchStop(_ context.Context, sessionID string, onStop func()) (func(), error) {
	if r.watchErr != nil {
		return nil, r.watchErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers[sessionID] = append(r.watchers[sessionID], onStop)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.watchers, sessionID)
	}, nil
}

func (r *fakeStopRepo) watching(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watchers[sessionID]) > 0
}

var errBoom = errors.New("boom")
