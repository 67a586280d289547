// Package store provides SQLite-backed storage for network descriptions
// and the plugin metadata cache.
//
// # Tables
//
//   - networks: saved ir.NetworkSpec documents. Every distinct content of a
//     name is one version; saving identical content again is a no-op.
//   - plugins: harvested plugin metadata keyed by (path, index), so the
//     CLI can list and validate plugins without opening every library.
//
// # Patterns
//
// Ordering uses the seq column (a per-table logical counter), never wall
// time, so listings are identical across runs:
//
//	ORDER BY seq ASC, id COLLATE BINARY ASC
//
// Network ids are UUIDv7. Content identity is ir.NetworkHash over the
// canonical JSON of the spec, which excludes the id.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
