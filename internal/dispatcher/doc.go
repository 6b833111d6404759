// Package dispatcher routes user commands to plugins with a language
// model fallback.
//
// The router is stateless between calls and total: every input produces a
// DispatchResult, never a panic. Matching walks enabled plugins in
// registration order over trimmed, case-folded text; the first match wins
// and executes outside any registry lock. Unmatched commands fall back to
// the language model, and when that is unavailable the router answers
// with a fixed apology.
//
// Dispatch is single-threaded. Concurrent callers are serialized by a
// busy guard: while one command is in flight, others receive a fixed
// busy response without touching the registry.
package dispatcher
