// Package sim provides the shared domain model of the strategy engine.
//
// # Reading Guide
//
// Start with these files:
//   - types.go: compounds, stints, strategy candidates, races, the field, scoring
//   - rng.go: deterministic partitioned RNG and per-draw derived streams
//   - config.go: strongly-typed simulation, candidate, selection and season groups
//   - errors.go: the error taxonomy (training data, untrained model, incomplete schedule)
//
// # Architecture
//
// The sim package defines types only; behaviour lives in sub-packages:
//   - sim/pace/: feature tables and the gradient-boosted pace model
//   - sim/strategy/: pit/tyre candidate enumeration
//   - sim/race/: Monte Carlo race simulation against the full field
//   - sim/selection/: scoring, primary and contingency selection
//   - sim/contingency/: scenario stress tests and trigger labels
//   - sim/championship/: season resampling and title probabilities
//   - sim/season/: YAML season spec and the end-to-end pipeline
//   - sim/trace/: selection decision trace
//   - sim/report/, sim/lock/, sim/metrics/: artifacts, locked snapshots, run metrics
//
// # Determinism
//
// Every random quantity is drawn from a stream derived from the run's SimulationKey.
// Single-threaded consumers use PartitionedRNG.ForSubsystem; parallel workers use
// DrawStream keyed by (scope, id, index) and never share a stream.
package sim
