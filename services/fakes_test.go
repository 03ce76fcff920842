package services

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	return f.reply, f.err
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, email Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, email)
	return f.err
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeSMS fails for numbers listed in failFor.
type fakeSMS struct {
	mu      sync.Mutex
	sent    []string
	bodies  []string
	failFor map[string]bool
	err     error
}

func (f *fakeSMS) SendSMS(ctx context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.failFor[to] {
		return "", errors.New("carrier rejected")
	}
	f.sent = append(f.sent, to)
	f.bodies = append(f.bodies, body)
	return "msg-" + to, nil
}

func (f *fakeSMS) Configured() bool { return true }

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int)}
}

func (f *fakeCounter) Increment(ctx context.Context, ip, feature string, window time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ip + "|" + feature + "|" + window.String()
	f.counts[key]++
	return f.counts[key], nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) Publish(eventType string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}
