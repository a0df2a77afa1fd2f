// Package world owns every connected session's lifecycle and multiplexes the
// server's periodic maintenance onto one cooperative update loop.
//
// Concurrency model: a single tick goroutine calls World.Update once per
// frame and is the only goroutine allowed to mutate the session registry,
// the admission queue, or any interval timer. Everything else (network
// accept, async I/O completions, admin surfaces) only enqueues work through
// Submit/SubmitLink/Post. The one exception is the shutdown controller,
// which carries its own narrow lock so operators can schedule or cancel a
// stop from outside the tick loop.
package world
