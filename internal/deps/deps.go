package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement is one external tool the rip pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// Hint tells the operator how to get the tool onto PATH.
	Hint     string
	Optional bool
}

// Status is the result of looking a Requirement up on PATH.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	// Path is the resolved binary when Available.
	Path   string
	Detail string
}

// CheckBinaries resolves every requirement on PATH. Unavailable tools carry
// the install hint in Detail.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(req))
	}
	return results
}

func check(req Requirement) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		if hint := strings.TrimSpace(req.Hint); hint != "" {
			status.Detail += "; " + hint
		}
		return status
	}
	status.Available = true
	status.Path = path
	return status
}

// Missing returns the required tools that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			out = append(out, status)
		}
	}
	return out
}
