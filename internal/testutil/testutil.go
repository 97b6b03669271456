// Package testutil provides shared test helpers for setting up vaults,
// databases and scripted oracles.
package testutil

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/oracle"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/vault"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates an initialized vault store in a temporary directory.
func TestVault(t *testing.T, opts ...vault.Option) *vault.Store {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := vault.New(fs, opts...)
	if err := s.Initialize(); err != nil {
		t.Fatal(err)
	}
	return s
}

// ErrScriptExhausted is returned once a ScriptedOracle has no steps left.
var ErrScriptExhausted = errors.New("scripted oracle: no more responses")

// Step is one scripted oracle reply.
type Step struct {
	Text   string
	Tokens int
	Err    error
	// Block makes the call wait for ctx cancellation and return ctx.Err().
	Block bool
	Delay time.Duration
}

// ScriptedOracle replays a fixed sequence of replies and records every request.
type ScriptedOracle struct {
	mu       sync.Mutex
	steps    []Step
	requests []oracle.Request
}

// NewScriptedOracle returns an oracle that answers with steps in order.
func NewScriptedOracle(steps ...Step) *ScriptedOracle {
	return &ScriptedOracle{steps: steps}
}

// Reply is shorthand for a successful text step.
func Reply(text string, tokens int) Step { return Step{Text: text, Tokens: tokens} }

// Generate implements oracle.Oracle.
func (s *ScriptedOracle) Generate(ctx context.Context, req oracle.Request) (*oracle.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		s.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	s.mu.Unlock()

	if step.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return &oracle.Response{Text: step.Text, TokensUsed: step.Tokens}, nil
}

// Requests returns a copy of the recorded requests.
func (s *ScriptedOracle) Requests() []oracle.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]oracle.Request(nil), s.requests...)
}

// Calls returns the number of Generate calls so far.
func (s *ScriptedOracle) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
