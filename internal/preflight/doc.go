// Package preflight checks the external binaries and directories a run
// depends on before any download starts.
//
// RunAll backs both the run command, which refuses to start when a required
// check fails, and the "autosplit deps" command, which prints every result.
package preflight
