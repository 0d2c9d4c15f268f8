// Package cli parses command-line arguments of the schedscope binaries,
// validates them and maps failures to exit codes.
package cli
