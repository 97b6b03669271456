package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/agent"
)

// RouteRecord is one handled message in the routing ledger.
type RouteRecord struct {
	ID        string    `json:"id"`
	Agent     string    `json:"agent"`
	Tokens    int       `json:"tokens"`
	FiledPath string    `json:"filed_path,omitempty"`
	Failed    bool      `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentUsage aggregates the ledger per agent.
type AgentUsage struct {
	Agent    string `json:"agent"`
	Messages int    `json:"messages"`
	Failures int    `json:"failures"`
	Tokens   int    `json:"tokens"`
}

// RecordRoute appends r to the ledger. Missing ID and timestamp are filled in.
func (db *DB) RecordRoute(ctx context.Context, r RouteRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO routes (id, agent, tokens, filed_path, failed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Agent, r.Tokens, r.FiledPath, r.Failed, r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: record route: %w", err)
	}
	return nil
}

// UsageSince sums ledger entries created at or after since, per agent.
func (db *DB) UsageSince(ctx context.Context, since time.Time) ([]AgentUsage, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT agent, COUNT(*), COALESCE(SUM(failed), 0), COALESCE(SUM(tokens), 0)
		FROM routes WHERE created_at >= ?
		GROUP BY agent ORDER BY agent`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("index: usage: %w", err)
	}
	defer rows.Close()

	out := []AgentUsage{}
	for rows.Next() {
		var u AgentUsage
		if err := rows.Scan(&u.Agent, &u.Messages, &u.Failures, &u.Tokens); err != nil {
			return nil, fmt.Errorf("index: scan usage: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// tracked records every Handle call of the wrapped agent in the ledger.
type tracked struct {
	agent.Agent
	ledger Ledger
	logger *slog.Logger
}

// Track wraps a so that each handled message is written to the ledger. The
// wrapped agent's result and error are returned unchanged; ledger failures
// are only logged.
func Track(a agent.Agent, ledger Ledger, logger *slog.Logger) agent.Agent {
	t := &tracked{Agent: a, ledger: ledger, logger: logger}
	if h, ok := a.(agent.ParameterHinter); ok {
		return &trackedHinter{tracked: t, hinter: h}
	}
	return t
}

func (t *tracked) Handle(ctx context.Context, mc *agent.MessageContext) (*agent.Result, error) {
	res, err := t.Agent.Handle(ctx, mc)

	rec := RouteRecord{Agent: t.Name(), Failed: err != nil}
	if res != nil {
		rec.Tokens = res.TokensUsed
		rec.FiledPath = res.FiledPath
	}
	if recErr := t.ledger.RecordRoute(context.WithoutCancel(ctx), rec); recErr != nil {
		t.logger.Warn("ledger: record failed",
			slog.String("agent", rec.Agent),
			slog.String("error", recErr.Error()))
	}
	return res, err
}

type trackedHinter struct {
	*tracked
	hinter agent.ParameterHinter
}

func (t *trackedHinter) ParameterHint() string { return t.hinter.ParameterHint() }
