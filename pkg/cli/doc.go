// Package cli provides the shared pieces of the tagmatch command line:
// result output (YAML, JSON, tables and raw text, optionally filtered by a
// jq expression), configuration file decoding, human readable formatting
// and the on-disk directory layout under ~/.tagmatch.
//
// Example usage:
//
//	err := cli.Output(candidates, cli.OutputOptions{
//	    Format: cli.FormatTable,
//	    Query:  ".[] | select(.fused_score > 0.8)",
//	})
package cli
