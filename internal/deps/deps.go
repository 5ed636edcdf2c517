// Package deps resolves the external binaries autosplit shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external binary and what a run needs it for.
type Requirement struct {
	Name        string
	Command     string
	Description string
}

// Status is a Requirement after lookup. Path is the resolved executable when
// Available; otherwise Detail says why it could not be used.
type Status struct {
	Requirement
	Available bool
	Path      string
	Detail    string
}

// CheckBinaries resolves each requirement against PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		results[i] = lookup(req)
	}
	return results
}

func lookup(req Requirement) Status {
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Available = true
	status.Path = path
	return status
}
