// Package pipeline governs terminal output between a PTY reader and a bounded
// display surface.
//
// A Pipeline composes three leaves:
//
//   - Throttle queues output chunks and drains them to the surface in write
//     order. Bursts switch it into throttled mode, where drains are spaced by
//     the frame interval and capped per drain.
//   - Governor trims the surface's scrollback when it grows past a fraction of
//     its configured capacity.
//   - MemoryMonitor estimates the session footprint and reports when it
//     crosses the warning threshold.
//
// Bytes are never dropped by the pipeline itself; only ClearQueue and
// ForceCleanup discard pending chunks, and only trims discard rendered
// scrollback.
package pipeline
