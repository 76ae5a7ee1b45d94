// Package flexplan provides the shared building blocks for a
// dependency-aware workflow scheduler and an actor workshop: a partial-order
// dependency chain over named items, tasks with placeholder-based argument
// substitution, single-assignment futures, and mailboxes carrying routed
// messages between the outside world, a supervisor, and worker stations.
//
// Subpackages
//   - flexplan/workbench: the single-worker message-processing loop that
//     runs inside a station.
//   - flexplan/station: thread- and process-backed execution hosts for a
//     workbench.
//   - flexplan/workshop: the supervisor that registers workers, starts their
//     stations, and routes mail between them.
//   - flexplan/executor: a bounded pool used by the workflow scheduler; it
//     runs every job on a goroutine and has no process-backed submission.
//   - flexplan/scheduler: the dependency-aware workflow scheduler itself.
//   - flexplan/metrics: ambient instrumentation (counters, histograms).
//   - flexplan/observability: ambient structured-logging event sink.
package flexplan
