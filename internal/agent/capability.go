package agent

import "agentgate/internal/domain"

// CoreTools is the baseline tool surface. Backends that do not speak the
// extended protocol are narrowed to this set no matter what they declare.
var CoreTools = []string{
	"read_file",
	"write_file",
	"edit_file",
	"list_dir",
	"glob_search",
	"content_search",
	"run_command",
	"fetch_url",
	"web_search",
}

// CapabilitySet narrows the tools exposed to one backend. The exposed set
// is the intersection of what the backend declares and what the protocol
// level permits; an empty declaration means "everything permitted".
type CapabilitySet struct {
	declared map[string]bool // if non-empty, only these tools are declared
	extended bool            // extended protocol lifts the core-set narrowing
}

func NewCapabilitySet(declared []string, extendedProtocol bool) *CapabilitySet {
	cs := &CapabilitySet{
		declared: make(map[string]bool, len(declared)),
		extended: extendedProtocol,
	}
	for _, t := range declared {
		cs.declared[t] = true
	}
	return cs
}

// IsExposed returns true if the tool is visible to the backend.
func (cs *CapabilitySet) IsExposed(name string) bool {
	if cs == nil {
		return true
	}
	if len(cs.declared) > 0 && !cs.declared[name] {
		return false
	}
	if cs.extended {
		return true
	}
	for _, core := range CoreTools {
		if name == core {
			return true
		}
	}
	return false
}

// Exposed returns only the tool definitions visible to the backend,
// preserving order.
func (cs *CapabilitySet) Exposed(defs []domain.ToolDefinition) []domain.ToolDefinition {
	filtered := make([]domain.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		if cs.IsExposed(d.Name) {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
