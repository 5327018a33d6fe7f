// Package topology is the inference and validation engine.
//
// It turns per-host snapshots (interface inventory, link-layer state,
// neighbor observations) into a consistent graph of host-to-host links,
// then audits that graph with a fixed battery of consistency rules.
//
// The engine is a pure batch transform: Infer then Validate, no I/O, no
// retained state between runs. Collection, configuration, and rendering
// live in their own packages and only exchange values with this one.
package topology
