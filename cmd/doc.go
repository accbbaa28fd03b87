// Package cmd implements the command-line interface of restrpc. It provides a
// hierarchical command structure with operations for exporting the demo service
// and calling it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Exports the demo hello service and serves it until interrupted
//   - hello: Client commands for the demo hello service (user, greet, fail, ping, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See restrpc -help for a list of all commands.
package cmd
