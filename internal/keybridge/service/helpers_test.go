package service_test

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/accesslab/keybridge/internal/keybridge/types"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// recordingBroadcaster captures every broadcast for inspection.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcastCall
}

type broadcastCall struct {
	Channel string
	Event   string
	Payload any
}

func (b *recordingBroadcaster) Broadcast(channel, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastCall{Channel: channel, Event: event, Payload: payload})
}

func (b *recordingBroadcaster) calls() []broadcastCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broadcastCall, len(b.events))
	copy(out, b.events)
	return out
}

// fakePublisher records enrollment commands and can be told to fail.
type fakePublisher struct {
	mu       sync.Mutex
	commands []types.EnrollCommand
	err      error
}

func (p *fakePublisher) PublishEnrollCommand(_ context.Context, cmd types.EnrollCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.commands = append(p.commands, cmd)
	return nil
}

func (p *fakePublisher) published() []types.EnrollCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.EnrollCommand, len(p.commands))
	copy(out, p.commands)
	return out
}
