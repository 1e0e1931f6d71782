// Package cmd is intentionally empty.
//
// The collaborator this bridge was extracted from exposes a CLI with two
// sub-commands, nats and tcp, selecting which transport binding to dial or
// listen on, plus a workload locator (a file path or a file://, http://, or
// https:// URL) and a --timeout flag defaulting to ten seconds. None of that
// surface belongs to the bridge itself: it's the surrounding collaborator's
// argument parsing and workload fetching, not the invoke/serve/polyfill core.
// This package fixes that external boundary for reference only; it carries
// no executable code.
package cmd
