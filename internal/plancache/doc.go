// Package plancache keeps translated query plans.
//
// Two layers are provided:
//   - Cache: a bounded in-memory map from plan key to plan, honouring
//     Plan.CanCachePlan.
//   - Store: a SQLite plan log recording every distinct plan shape seen,
//     for inspection with the plans command.
//
// # Ordering
//
// Logged plans carry a seq from a logical Clock, never a timestamp. List
// returns plans ORDER BY seq ASC, key ASC COLLATE BINARY so that two runs
// over the same queries produce identical logs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package plancache
