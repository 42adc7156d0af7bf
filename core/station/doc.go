// Package station implements the charging admission-control and scheduling
// engine: the waiting-area and per-pile queue model, the three pile
// assignment strategies, the time-of-use billing integrator, fault recovery
// and the organic-completion monitor. All state mutations run under a single
// mutual-exclusion domain and commit to the persisted store before the
// in-memory queues change.
package station
