// Package main hosts the autosplit CLI.
//
// The root command takes a stream URL and runs the split in the foreground:
// it loads configuration, applies flag overrides, checks the external tools,
// and hands off to the workflow runner. Subcommands cover configuration
// scaffolding, dependency checks, and browsing the run journal.
package main
