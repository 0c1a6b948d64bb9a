package tokenpool

import (
	"strings"
	"sync"

	"github.com/apex/log"
)

// Pool is an ordered set of API keys with a rotation cursor.
// It is safe for concurrent use.
type Pool struct {
	mu        sync.Mutex
	name      string
	tokens    []string
	cursor    int
	rotations int
}

// New creates a pool from the given keys. Blank keys are dropped.
func New(name string, tokens []string) *Pool {
	p := &Pool{name: name}
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			p.tokens = append(p.tokens, t)
		}
	}
	return p
}

// Parse builds a pool from a comma separated key list.
func Parse(name, csv string) *Pool {
	return New(name, strings.Split(csv, ","))
}

// Name returns the pool label used in logs and metrics.
func (p *Pool) Name() string {
	return p.name
}

// Len returns the number of usable keys.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tokens)
}

// Current returns the key under the cursor. ok is false for an empty pool.
func (p *Pool) Current() (token string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tokens) == 0 {
		return "", false
	}
	return p.tokens[p.cursor], true
}

// Advance moves the cursor to the next key, wrapping after the last one,
// and returns it. ok is false only for an empty pool.
//
// The pool keeps no per-request state. A caller that needs to know when
// every key has failed counts its own rotations against Len.
func (p *Pool) Advance() (token string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tokens) == 0 {
		return "", false
	}
	p.rotations++
	p.cursor = (p.cursor + 1) % len(p.tokens)
	log.WithFields(log.Fields{
		"pool":   p.name,
		"cursor": p.cursor,
	}).Info("rotated to next key")
	return p.tokens[p.cursor], true
}

// Rotations reports how many times Advance has been called.
func (p *Pool) Rotations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rotations
}
