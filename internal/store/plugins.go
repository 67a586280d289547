package store

import (
	"context"
	"fmt"

	"github.com/roach88/synthnet/internal/ir"
)

// PutPlugins replaces the cached metadata of every path in records with
// records, in one transaction.
func (s *Store) PutPlugins(ctx context.Context, records []ir.PluginRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put plugins: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	cleared := make(map[string]bool)
	for _, r := range records {
		if cleared[r.Path] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM plugins WHERE path = ?`, r.Path); err != nil {
			return fmt.Errorf("put plugins: clear %s: %w", r.Path, err)
		}
		cleared[r.Path] = true
	}

	seq, err := nextSeq(ctx, tx, "plugins")
	if err != nil {
		return err
	}
	for _, r := range records {
		ports, err := marshalPorts(r.Ports)
		if err != nil {
			return fmt.Errorf("put plugin %s#%d: %w", r.Path, r.Index, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO plugins
			(path, idx, unique_id, label, name, maker, copyright, type_name, broken, reason, signature, ports, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.Path, r.Index, r.UniqueID, r.Label, r.Name, r.Maker, r.Copyright,
			r.TypeName, r.Broken, r.Reason, r.Signature, ports, seq,
		)
		if err != nil {
			return fmt.Errorf("put plugin %s#%d: %w", r.Path, r.Index, err)
		}
		seq++
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put plugins: commit: %w", err)
	}
	return nil
}

// Plugins returns the cached metadata ordered by path and index.
func (s *Store) Plugins(ctx context.Context) ([]ir.PluginRecord, error) {
	return s.FindPlugins(ctx, nil)
}

// FindPlugins returns the cached metadata matching p, ordered like
// Plugins.
func (s *Store) FindPlugins(ctx context.Context, p Predicate) ([]ir.PluginRecord, error) {
	where, params, err := compileWhere(p, pluginFields)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, idx, unique_id, label, name, maker, copyright, type_name, broken, reason, signature, ports
		FROM plugins`+where+`
		ORDER BY path COLLATE BINARY ASC, idx ASC`, params...)
	if err != nil {
		return nil, fmt.Errorf("query plugins: %w", err)
	}
	defer rows.Close()

	out := []ir.PluginRecord{}
	for rows.Next() {
		var r ir.PluginRecord
		var ports string
		err := rows.Scan(&r.Path, &r.Index, &r.UniqueID, &r.Label, &r.Name, &r.Maker, &r.Copyright,
			&r.TypeName, &r.Broken, &r.Reason, &r.Signature, &ports)
		if err != nil {
			return nil, fmt.Errorf("scan plugin: %w", err)
		}
		if r.Ports, err = unmarshalPorts(ports); err != nil {
			return nil, fmt.Errorf("plugin %s#%d: %w", r.Path, r.Index, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plugins: %w", err)
	}
	return out, nil
}
