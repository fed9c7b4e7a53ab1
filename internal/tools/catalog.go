// Package tools provides the shared tool catalog the agentic loop executes
// against, plus the built-in web search and page reader tools.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/marchhare/go-crew/internal/ai"
)

// Handler executes a tool call. The returned string is fed back to the model
// verbatim as the tool result.
type Handler func(ctx context.Context, args map[string]any) (string, error)

type catalogEntry struct {
	def     ai.ToolDef
	handler Handler
	schema  *jsonschema.Schema
}

// Catalog is a named registry of tools. Definitions are returned in
// registration order so the model sees a stable tool list.
type Catalog struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*catalogEntry
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]*catalogEntry)}
}

// Register adds a tool, replacing any existing tool with the same name.
// If the definition carries a parameter schema it is compiled here so that
// Execute can validate arguments before dispatch.
func (c *Catalog) Register(def ai.ToolDef, handler Handler) error {
	if def.Name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	if handler == nil {
		return fmt.Errorf("register tool %q: nil handler", def.Name)
	}

	entry := &catalogEntry{def: def, handler: handler}
	if def.Parameters != nil {
		schema, err := compileSchema(def.Name, def.Parameters)
		if err != nil {
			return fmt.Errorf("register tool %q: %w", def.Name, err)
		}
		entry.schema = schema
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[def.Name]; !exists {
		c.order = append(c.order, def.Name)
	}
	c.entries[def.Name] = entry
	return nil
}

// Definitions returns all tool definitions in registration order.
func (c *Catalog) Definitions() []ai.ToolDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ai.ToolDef, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.entries[name].def)
	}
	return out
}

// Execute validates the arguments against the tool's schema and runs it.
// Arguments are passed through to the handler unmodified.
func (c *Catalog) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}

	if entry.schema != nil {
		if err := validateArgs(entry.schema, args); err != nil {
			return "", fmt.Errorf("tool %q arguments: %w", name, err)
		}
	}
	return entry.handler(ctx, args)
}

// compileSchema compiles a Go-built schema map into a validator.
func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	// Round-trip through jsonschema.UnmarshalJSON for correct number handling.
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := compiler.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateArgs(schema *jsonschema.Schema, args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("parse arguments: %w", err)
	}
	return schema.Validate(parsed)
}
