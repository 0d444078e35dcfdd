package actions

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
)

// Tokens below this many remaining requests are skipped.
const tokenRateOffset = 200

// How long a cached rate limit stays fresh.
const tokenRateInterval = 5 * time.Second

// A Token is a GitHub access token together with its tracked rate limit.
type Token struct {
	Value string

	client *github.Client

	mu         sync.Mutex
	remaining  int
	lastUpdate time.Time
}

// UpdateRateLimit refreshes the token's remaining request count, at most once
// per tokenRateInterval.
func (t *Token) UpdateRateLimit(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if time.Since(t.lastUpdate) < tokenRateInterval {
		return
	}
	limits, _, err := t.client.RateLimit.Get(ctx)
	if err != nil {
		logrus.Warnf("Couldn't update rate limit of token - %v", err)
		return
	}
	t.remaining = limits.Core.Remaining
	t.lastUpdate = time.Now()
}

// A TokenPool hands out GitHub tokens round-robin, skipping exhausted ones.
// A nil pool is valid and has no tokens.
type TokenPool struct {
	mu     sync.Mutex
	tokens []*Token
	next   int
}

// NewTokenPool builds a pool from a comma-separated token list. An empty list
// yields a pool without tokens.
func NewTokenPool(tokenList string) *TokenPool {
	pool := &TokenPool{}
	for _, value := range strings.Split(tokenList, ",") {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		token := &Token{
			Value:  value,
			client: github.NewClient(nil).WithAuthToken(value),
		}
		token.UpdateRateLimit(context.Background())
		pool.tokens = append(pool.tokens, token)
	}
	if len(pool.tokens) == 0 {
		logrus.Debug("No GitHub access tokens configured")
	}
	return pool
}

// HasTokens reports whether the pool holds any tokens.
func (p *TokenPool) HasTokens() bool {
	return p != nil && len(p.tokens) > 0
}

// Get returns the next token with enough remaining requests, or nil if every
// token is exhausted.
func (p *TokenPool) Get() *Token {
	if !p.HasTokens() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < len(p.tokens); i++ {
		token := p.tokens[p.next]
		p.next = (p.next + 1) % len(p.tokens)
		if token.remaining >= tokenRateOffset {
			return token
		}
	}
	logrus.Warn("All GitHub tokens are exhausted")
	return nil
}

// refresh updates the rate limits of the passed tokens after a run consumed
// requests on them.
func (p *TokenPool) refresh(tokens []*Token) {
	if p == nil {
		return
	}
	updated := make(map[*Token]bool)
	for _, token := range tokens {
		if !updated[token] {
			updated[token] = true
			token.UpdateRateLimit(context.Background())
		}
	}
}
