package realtime

import (
	"context"
	"sync"
)

// Speaker plays decoded audio. Play blocks until the chunk has finished or
// ctx is cancelled.
type Speaker interface {
	Play(ctx context.Context, samples []float32) error
}

// playbackQueue drains chunks one at a time on its own goroutine so replies
// never overlap.
type playbackQueue struct {
	speaker Speaker

	mu      sync.Mutex
	queue   [][]float32
	current context.CancelFunc
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func newPlaybackQueue(sp Speaker) *playbackQueue {
	p := &playbackQueue{speaker: sp, wake: make(chan struct{}, 1), done: make(chan struct{})}
	go p.loop()
	return p
}

// Enqueue appends a chunk. It never blocks on playback.
func (p *playbackQueue) Enqueue(samples []float32) {
	if len(samples) == 0 {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, samples)
	select {
	case p.wake <- struct{}{}:
	default:
	}
	p.mu.Unlock()
}

// Clear drops queued chunks and interrupts the one playing.
func (p *playbackQueue) Clear() {
	p.mu.Lock()
	p.queue = nil
	if p.current != nil {
		p.current()
	}
	p.mu.Unlock()
}

// Len returns the number of chunks waiting.
func (p *playbackQueue) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close stops the loop and waits for it to exit.
func (p *playbackQueue) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	p.queue = nil
	if p.current != nil {
		p.current()
	}
	close(p.wake)
	p.mu.Unlock()
	<-p.done
}

func (p *playbackQueue) next() ([]float32, context.Context, bool) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, nil, false
		}
		if len(p.queue) > 0 {
			chunk := p.queue[0]
			p.queue[0] = nil
			p.queue = p.queue[1:]
			ctx, cancel := context.WithCancel(context.Background())
			p.current = cancel
			p.mu.Unlock()
			return chunk, ctx, true
		}
		p.mu.Unlock()
		if _, ok := <-p.wake; !ok {
			return nil, nil, false
		}
	}
}

func (p *playbackQueue) loop() {
	defer close(p.done)
	for {
		chunk, ctx, ok := p.next()
		if !ok {
			return
		}
		if p.speaker != nil {
			_ = p.speaker.Play(ctx, chunk)
		}
		p.mu.Lock()
		if p.current != nil {
			p.current()
			p.current = nil
		}
		p.mu.Unlock()
	}
}
