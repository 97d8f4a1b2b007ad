package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/crossbridge/adapters/clock"
	"github.com/artpar/crossbridge/adapters/idgen"
	"github.com/artpar/crossbridge/core/schema"
	"github.com/artpar/crossbridge/ports"
)

// DeliveryRecord is a journaled signal delivery.
type DeliveryRecord struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Signal      string    `json:"signal"`
	Tags        []string  `json:"tags"`
	Args        []any     `json:"args"`
	DeliveredAt time.Time `json:"delivered_at"`
	Error       string    `json:"error,omitempty"`
}

// ModuleRecord is a journaled module load.
type ModuleRecord struct {
	Name        string    `json:"name"`
	Loader      string    `json:"loader"`
	Fingerprint string    `json:"fingerprint"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// OperationRecord is a journaled operation registration.
type OperationRecord struct {
	Owner   string   `json:"owner"`
	Name    string   `json:"name"`
	Params  []string `json:"params"`
	Returns string   `json:"returns"`
}

// Journal records every host call in SQLite and forwards it to next.
// With a nil next the journal acts as the host on its own.
type Journal struct {
	db     *sql.DB
	next   ports.HostCore
	clock  ports.Clock
	ids    ports.IDGenerator
	logger zerolog.Logger
}

// JournalOption configures a Journal.
type JournalOption func(*Journal)

func WithClock(c ports.Clock) JournalOption {
	return func(j *Journal) { j.clock = c }
}

func WithIDGenerator(g ports.IDGenerator) JournalOption {
	return func(j *Journal) { j.ids = g }
}

func WithLogger(logger zerolog.Logger) JournalOption {
	return func(j *Journal) { j.logger = logger }
}

// NewJournal creates a journal over a migrated database.
func NewJournal(db *DB, next ports.HostCore, opts ...JournalOption) *Journal {
	j := &Journal{
		db:     db.DB,
		next:   next,
		clock:  clock.Real{},
		ids:    idgen.UUID{Prefix: idgen.DeliveryPrefix},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Journal) RegisterSingleton(ctx context.Context, name string, ref schema.ModuleRef) error {
	var nextErr error
	if j.next != nil {
		nextErr = j.next.RegisterSingleton(ctx, name, ref)
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO singletons (name, ref, registered_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET ref = excluded.ref, registered_at = excluded.registered_at
	`, name, string(ref), j.clock.Now())
	if err != nil {
		err = fmt.Errorf("journal singleton %s: %w", name, err)
	}
	return errors.Join(nextErr, err)
}

func (j *Journal) RegisterOperation(ctx context.Context, owner string, op schema.Operation) error {
	var nextErr error
	if j.next != nil {
		nextErr = j.next.RegisterOperation(ctx, owner, op)
	}
	params, err := json.Marshal(schema.WireTags(op.Params))
	if err != nil {
		return errors.Join(nextErr, err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO operations (owner, name, params, returns, registered_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET
			params = excluded.params,
			returns = excluded.returns,
			registered_at = excluded.registered_at
	`, owner, op.Name, string(params), string(op.ReturnTag()), j.clock.Now())
	if err != nil {
		err = fmt.Errorf("journal operation %s.%s: %w", owner, op.Name, err)
	}
	return errors.Join(nextErr, err)
}

func (j *Journal) RegisterSignal(ctx context.Context, owner string, sig schema.SignalSchema) error {
	var nextErr error
	if j.next != nil {
		nextErr = j.next.RegisterSignal(ctx, owner, sig)
	}
	params, err := json.Marshal(sig.WireParams())
	if err != nil {
		return errors.Join(nextErr, err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO signals (owner, name, params, registered_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET
			params = excluded.params,
			registered_at = excluded.registered_at
	`, owner, sig.Name(), string(params), j.clock.Now())
	if err != nil {
		err = fmt.Errorf("journal signal %s.%s: %w", owner, sig.Name(), err)
	}
	return errors.Join(nextErr, err)
}

// DeliverSignal forwards the delivery and journals it, including the
// forwarding error if there was one.
func (j *Journal) DeliverSignal(ctx context.Context, owner, signal string, args []schema.Value) error {
	var nextErr error
	if j.next != nil {
		nextErr = j.next.DeliverSignal(ctx, owner, signal, args)
	}

	tags := make([]string, len(args))
	for i, a := range args {
		tags[i] = string(a.Tag())
	}
	tagsJSON, _ := json.Marshal(tags)

	var errText string
	if nextErr != nil {
		errText = nextErr.Error()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO deliveries (id, owner, signal, tags, args, delivered_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, j.ids.New(), owner, signal, string(tagsJSON), encodeArgs(args), j.clock.Now(), errText)
	if err != nil {
		j.logger.Error().Err(err).Str("module", owner).Str("signal", signal).Msg("journal delivery failed")
		err = fmt.Errorf("journal delivery %s.%s: %w", owner, signal, err)
	}
	return errors.Join(nextErr, err)
}

// encodeArgs renders args as a JSON array. Values JSON cannot carry
// (NaN, infinities) fall back to their text form.
func encodeArgs(args []schema.Value) string {
	plain := make([]any, len(args))
	for i, a := range args {
		plain[i] = a.Interface()
	}
	if b, err := json.Marshal(plain); err == nil {
		return string(b)
	}
	text := make([]string, len(args))
	for i, a := range args {
		text[i] = a.String()
	}
	b, _ := json.Marshal(text)
	return string(b)
}

// RecordModule journals a loaded module, replacing an earlier record of
// the same name.
func (j *Journal) RecordModule(ctx context.Context, name, loader, fingerprint string) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO modules (name, loader, fingerprint, loaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			loader = excluded.loader,
			fingerprint = excluded.fingerprint,
			loaded_at = excluded.loaded_at
	`, name, loader, fingerprint, j.clock.Now())
	if err != nil {
		return fmt.Errorf("journal module %s: %w", name, err)
	}
	return nil
}

// Deliveries returns the latest deliveries, newest first. An empty owner
// matches every module.
func (j *Journal) Deliveries(ctx context.Context, owner string, limit int) ([]DeliveryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, owner, signal, tags, args, delivered_at, error
		FROM deliveries
		WHERE ? = '' OR owner = ?
		ORDER BY delivered_at DESC, id DESC
		LIMIT ?
	`, owner, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliveryRecord
	for rows.Next() {
		var d DeliveryRecord
		var tags, args string
		if err := rows.Scan(&d.ID, &d.Owner, &d.Signal, &tags, &args, &d.DeliveredAt, &d.Error); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tags), &d.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of %s: %w", d.ID, err)
		}
		if err := json.Unmarshal([]byte(args), &d.Args); err != nil {
			return nil, fmt.Errorf("decode args of %s: %w", d.ID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Modules returns every journaled module ordered by name.
func (j *Journal) Modules(ctx context.Context) ([]ModuleRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT name, loader, fingerprint, loaded_at
		FROM modules
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ModuleRecord
	for rows.Next() {
		var m ModuleRecord
		if err := rows.Scan(&m.Name, &m.Loader, &m.Fingerprint, &m.LoadedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Operations returns the operations journaled for owner ordered by name.
func (j *Journal) Operations(ctx context.Context, owner string) ([]OperationRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT owner, name, params, returns
		FROM operations
		WHERE owner = ?
		ORDER BY name
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OperationRecord
	for rows.Next() {
		var op OperationRecord
		var params string
		if err := rows.Scan(&op.Owner, &op.Name, &params, &op.Returns); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(params), &op.Params); err != nil {
			return nil, fmt.Errorf("decode params of %s.%s: %w", owner, op.Name, err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// Ensure interface compliance.
var _ ports.HostCore = (*Journal)(nil)
