// Package core provides the module system foundation for coda:
// a registry of pluggable modules, a shared application context, and
// the lifecycle machinery that loads, starts, and stops them.
package core

// ModuleID uniquely identifies a module, namespaced by dots
// (e.g. "provider.ollama", "memory.sqlite", "gateway.http").
type ModuleID string

// Namespace returns the portion of the ID before the first dot.
func (id ModuleID) Namespace() string {
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			return string(id[:i])
		}
	}
	return string(id)
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is the minimal interface all modules implement. Optional
// lifecycle behavior is expressed through the interfaces in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
