package deps

import (
	"fmt"
	"strings"
)

// ResolveWorkerCommand reports the first interpreter from commands that
// resolves on PATH, in the same order the invoker tries them. The detail
// names the fallback when the primary command is missing.
func ResolveWorkerCommand(commands []string) Status {
	result := Status{
		Name:        "Worker interpreter",
		Description: "Runs the conversion script",
	}

	requirements := make([]Requirement, 0, len(commands))
	for i, candidate := range commands {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		requirements = append(requirements, Requirement{
			Name:     candidate,
			Command:  candidate,
			Optional: i > 0,
		})
	}
	if len(requirements) == 0 {
		result.Detail = "command not configured"
		return result
	}

	statuses := CheckBinaries(requirements)
	for i, status := range statuses {
		if !status.Available {
			continue
		}
		result.Command = status.Command
		result.Available = true
		if i > 0 {
			result.Detail = fmt.Sprintf("using fallback %q", status.Name)
		}
		return result
	}

	tried := make([]string, len(statuses))
	for i, status := range statuses {
		tried[i] = fmt.Sprintf("%q", status.Name)
	}
	result.Command = statuses[0].Command
	result.Detail = fmt.Sprintf("none of %s found", strings.Join(tried, ", "))
	return result
}
