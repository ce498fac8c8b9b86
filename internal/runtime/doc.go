// Package runtime is the registry/runtime core: it owns all context
// and behavior-instance bookkeeping, orchestrates contextualization,
// fulfills mutualism relationships, and drains the staged update cycle.
//
// # Model
//
// Contexts are typed data holders registered into per-type buckets.
// Behaviors are units of logic instantiated, via per-behavior-type
// dependency fulfillment factories, once a sufficient set of contexts
// exists to satisfy their declared dependencies, and thereafter react
// to mutations of the contexts they hold.
//
// Work is two-phase: contextualize/decontextualize and cell writes only
// QUEUE work (pending factories, change records, pending removals);
// a later Update call DRAINS one wave of it in a fixed phase order.
// Work generated during a wave waits for the next one, so stabilization
// is reached by calling Update until it reports false (see Settle).
//
// # Concurrency
//
// Single-threaded, synchronous, cooperative. One logical owner
// goroutine per Runtime; Update guards against reentrancy explicitly.
// Embedders wanting concurrency must serialize all calls, e.g. via a
// single-writer queue.
package runtime
