// Package engine implements the realtime module graph and the transaction
// queue that is the only way to mutate it.
//
// ARCHITECTURE:
//
// Two execution contexts cooperate:
//   - the control path builds Modules, fills Transactions with Jobs and
//     commits them; it also collects drained transactions to run free
//     callbacks (CollectGarbage)
//   - the realtime side (one goroutine: an audio callback via Render, or
//     Run) drains at most one committed transaction per block boundary and
//     then renders the block
//
// Block Processing Flow:
//  1. Control path commits a transaction (stamped by the logical Clock)
//  2. ProcessBlock pops it from the pending SPSC queue and applies every job
//  3. Due flow jobs run
//  4. If the graph changed, the schedule is rebuilt (levels, cost batches)
//  5. Modules render in schedule order, then deferred hooks run
//  6. The drained transaction is pushed back on the done SPSC queue
//
// CRITICAL PATTERNS:
//
// Single-Writer Graph:
// Only the realtime side touches module streams and user data. The control
// path reaches them exclusively through Access jobs; the realtime side
// answers only through free callbacks that run inside CollectGarbage.
//
// Ordering:
// Transactions are drained one at a time, fully, in commit order. Jobs in a
// transaction run in insertion order. A Discard queued after an Access on
// the same module therefore always sees the access applied first.
//
// Fail Fast:
// Stream index errors, double connects and discarding a module whose outputs
// still feed others panic with *ConsistencyError. They only arise from
// internal logic and cannot be rolled back mid-block.
package engine
