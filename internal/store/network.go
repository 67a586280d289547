package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/synthnet/internal/ir"
)

// NetworkSummary is one row of ListNetworks.
type NetworkSummary struct {
	ID   string
	Name string
	Hash string
	Seq  int64
}

// SaveNetwork stores spec as the newest version of its name and returns
// it with its id set. Saving content that is already stored under the
// same name returns the existing id and writes nothing.
//
// A spec that already carries an id keeps it; otherwise a UUIDv7 is
// assigned.
func (s *Store) SaveNetwork(ctx context.Context, spec ir.NetworkSpec) (ir.NetworkSpec, error) {
	if spec.Name == "" {
		return ir.NetworkSpec{}, errors.New("save network: missing name")
	}
	hash, err := ir.NetworkHash(spec)
	if err != nil {
		return ir.NetworkSpec{}, fmt.Errorf("save network %s: %w", spec.Name, err)
	}
	data, err := marshalSpec(spec)
	if err != nil {
		return ir.NetworkSpec{}, fmt.Errorf("save network %s: %w", spec.Name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.NetworkSpec{}, fmt.Errorf("save network: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM networks WHERE name = ? AND hash = ?`, spec.Name, hash).Scan(&existing)
	switch {
	case err == nil:
		spec.ID = existing
		return spec, nil
	case !errors.Is(err, sql.ErrNoRows):
		return ir.NetworkSpec{}, fmt.Errorf("save network %s: %w", spec.Name, err)
	}

	if spec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return ir.NetworkSpec{}, fmt.Errorf("save network: new id: %w", err)
		}
		spec.ID = id.String()
	}
	seq, err := nextSeq(ctx, tx, "networks")
	if err != nil {
		return ir.NetworkSpec{}, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO networks
		(id, name, hash, spec, seq, format_version, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		spec.ID,
		spec.Name,
		hash,
		data,
		seq,
		ir.FormatVersion,
		ir.EngineVersion,
	)
	if err != nil {
		return ir.NetworkSpec{}, fmt.Errorf("save network %s: %w", spec.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return ir.NetworkSpec{}, fmt.Errorf("save network: commit: %w", err)
	}
	return spec, nil
}

// LoadNetwork returns the network with id ref, or the newest version of
// the network named ref.
func (s *Store) LoadNetwork(ctx context.Context, ref string) (ir.NetworkSpec, error) {
	var id, data string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, spec FROM networks
		WHERE id = ? OR name = ?
		ORDER BY (id = ?) DESC, seq DESC
		LIMIT 1
	`, ref, ref, ref).Scan(&id, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.NetworkSpec{}, fmt.Errorf("load network %q: %w", ref, ErrNotFound)
	}
	if err != nil {
		return ir.NetworkSpec{}, fmt.Errorf("load network %q: %w", ref, err)
	}
	return unmarshalSpec(id, data)
}

// ListNetworks returns every stored version in save order.
func (s *Store) ListNetworks(ctx context.Context) ([]NetworkSummary, error) {
	return s.FindNetworks(ctx, nil)
}

// FindNetworks returns the stored versions matching p in save order. A nil
// p matches every version.
func (s *Store) FindNetworks(ctx context.Context, p Predicate) ([]NetworkSummary, error) {
	where, params, err := compileWhere(p, networkFields)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, hash, seq FROM networks`+where+`
		ORDER BY seq ASC, id COLLATE BINARY ASC`, params...)
	if err != nil {
		return nil, fmt.Errorf("query networks: %w", err)
	}
	defer rows.Close()

	out := []NetworkSummary{}
	for rows.Next() {
		var n NetworkSummary
		if err := rows.Scan(&n.ID, &n.Name, &n.Hash, &n.Seq); err != nil {
			return nil, fmt.Errorf("scan network: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate networks: %w", err)
	}
	return out, nil
}

// DeleteNetwork removes every version of the network named name.
func (s *Store) DeleteNetwork(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM networks WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete network %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete network %q: %w", name, ErrNotFound)
	}
	return nil
}
