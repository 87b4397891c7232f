// Package reachability tracks whether the network is usable for downloads.
package reachability

import (
	"context"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Reader is the read side consulted before a download.
type Reader interface {
	Online() bool
}

// Signal holds the latest known online state.
type Signal struct {
	online atomic.Bool

	// setMu orders transitions and their notifications.
	setMu sync.Mutex

	mu      sync.Mutex
	subs    map[int]func(bool)
	nextSub int
}

func NewSignal(online bool) *Signal {
	s := &Signal{subs: map[int]func(bool){}}
	s.online.Store(online)
	return s
}

func (s *Signal) Online() bool { return s.online.Load() }

// Set records the state and notifies subscribers on transitions. Concurrent
// calls are serialized, so subscribers see transitions in the order they were
// applied. Subscribers must not call Set.
func (s *Signal) Set(online bool) {
	s.setMu.Lock()
	defer s.setMu.Unlock()
	if s.online.Swap(online) == online {
		return
	}
	s.mu.Lock()
	fns := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(online)
	}
}

func (s *Signal) Subscribe(fn func(online bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = map[int]func(bool){}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Static is a fixed Reader.
type Static bool

func (s Static) Online() bool { return bool(s) }

// Prober feeds a Signal by polling a probe URL.
type Prober struct {
	URL      string
	Interval time.Duration
	Client   *http.Client
	Signal   *Signal
	Logger   *log.Logger
}

func (p *Prober) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

// Check performs one probe and updates the signal. Any response from the
// probe host counts as online.
func (p *Prober) Check(ctx context.Context) bool {
	online := p.probe(ctx)
	if p.Signal != nil {
		p.Signal.Set(online)
	}
	return online
}

func (p *Prober) probe(ctx context.Context) bool {
	if p.URL == "" {
		return true
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		p.logger().Printf("reachability: bad probe url: %v", err)
		return false
	}
	res, err := client.Do(req)
	if err != nil {
		return false
	}
	res.Body.Close()
	return true
}

// Run probes until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p.Check(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
