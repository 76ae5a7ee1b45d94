// Package scheduler implements the dependency-aware workflow scheduler: a
// Scheduler wraps a flexplan.DependencyChain[string] and dispatches tasks
// via one of three strategies (BFS, DFS, Mix), split between an
// independent-task quota and a dependent-task quota, paced by a heartbeat
// loop.
package scheduler
