// Package cmd implements the command-line interface of nvboot. It provides a
// hierarchical command structure for inspecting and provisioning the NVRAM
// key/value store of a boot flash and for running the boot-time flows on an
// image of it.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key/value store operations (get, set, del, list, info)
//   - boot: Runs the A/B root swap state machine and prints the boot command
//   - dram: Loads and prints the DRAM timing record (plain NVRAM or platform blob)
//   - build: Builds store, NVRAM and platform images from a YAML manifest
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set through an environment variable with the prefix
// NVBOOT_ (e.g. NVBOOT_DEVICE), optionally from a .env or .env.local file.
//
// See nvboot -help for a list of all commands.
package cmd
