// Package main is the entry point for the tagmatch CLI.
//
// Usage:
//
//	tagmatch [flags] <command> [args]
//
// Commands:
//
//	build    - Merge raw tag tables, embed and save the artifact
//	match    - Map free-form labels to canonical tags
//	prefix   - Autocomplete canonical tag names
//	info     - Show what the loaded artifact contains
//	cache    - Manage the embedding cache
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/tagmatch/cmd/tagmatch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
