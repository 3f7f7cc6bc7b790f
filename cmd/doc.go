// Package cmd implements the command-line interface for the dCap capped record
// store. It provides a hierarchical command structure with operations for running
// the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - cstore: Commands for capped store operations (insert, get, scan, truncate, etc.)
//     and a performance testing tool
//   - serve: Commands for starting and configuring the dCap server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dcap -help for a list of all commands.
package cmd
