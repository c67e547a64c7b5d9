// Package cmd implements the command-line interface for recstore.
//
// The package is organized into several subpackages:
//
//   - load: Load a dataset into a store built from a definition file and print the active view
//   - perf: Benchmarks of the store operations
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See recstore -help for a list of all commands.
package cmd
