package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/crossbridge/core/plugin"
)

// MetadataPrefix marks application metadata keys that declare a module.
// The rest of the key is the module identity, the value its loader reference.
const MetadataPrefix = "crossbridge.plugin.v1."

// Entry is one discovered module: an identity and an opaque loader reference.
type Entry struct {
	Name   string `yaml:"name" json:"name"`
	Loader string `yaml:"loader" json:"loader"`
}

// FromMetadata extracts entries from application metadata. Keys without
// MetadataPrefix are ignored; entries are returned in key order.
func FromMetadata(meta map[string]string) []Entry {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		if strings.HasPrefix(k, MetadataPrefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{
			Name:   strings.TrimSpace(strings.TrimPrefix(k, MetadataPrefix)),
			Loader: strings.TrimSpace(meta[k]),
		})
	}
	return entries
}

// Catalog resolves loader references to loaders.
type Catalog struct {
	mu      sync.RWMutex
	loaders map[string]plugin.Loader
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{loaders: make(map[string]plugin.Loader)}
}

// Add binds ref to l. A reference can be bound once.
func (c *Catalog) Add(ref string, l plugin.Loader) error {
	if strings.TrimSpace(ref) == "" {
		return fmt.Errorf("loader reference is required")
	}
	if l == nil {
		return fmt.Errorf("loader %q is nil", ref)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.loaders[ref]; exists {
		return fmt.Errorf("%w: %q", ErrLoaderBound, ref)
	}
	c.loaders[ref] = l
	return nil
}

// MustAdd is Add for static wiring. It panics on error.
func (c *Catalog) MustAdd(ref string, l plugin.Loader) *Catalog {
	if err := c.Add(ref, l); err != nil {
		panic(err)
	}
	return c
}

// Resolve returns the loader bound to ref.
func (c *Catalog) Resolve(ref string) (plugin.Loader, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.loaders[ref]
	return l, ok
}

// Refs returns the bound references in sorted order.
func (c *Catalog) Refs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	refs := make([]string, 0, len(c.loaders))
	for ref := range c.loaders {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
