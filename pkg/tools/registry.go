package tools

import (
	"fmt"
	"sync"
)

// Catalog is a registry of Tools. It starts open for registration and is
// sealed before first use, mirroring the teacher's immutable global
// registry but scoped per-orchestrator instance instead of process-global,
// since a single process may host more than one runtime in tests.
type Catalog struct {
	mu     sync.RWMutex
	sealed bool
	tools  map[string]Tool
}

// NewCatalog returns an empty, unsealed Catalog.
func NewCatalog() *Catalog {
	return &Catalog{tools: make(map[string]Tool)}
}

// Register adds a tool to the catalog. Panics if called after Seal, since a
// late registration is always a programming error, not a runtime condition.
func (c *Catalog) Register(tool Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		panic(fmt.Sprintf("tool catalog sealed - cannot register tool %q", tool.Definition().Name))
	}
	c.tools[tool.Definition().Name] = tool
}

// Seal prevents further registration. Idempotent.
func (c *Catalog) Seal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
}

// Get looks up a tool by name.
func (c *Catalog) Get(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[name]
	return t, ok
}

// List returns the ToolDefinition of every registered tool, in the wire
// format sent to an LLM adapter alongside the message list.
func (c *Catalog) List() []ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(c.tools))
	for _, t := range c.tools {
		defs = append(defs, t.Definition())
	}
	return defs
}
