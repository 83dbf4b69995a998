package loader

import (
	"context"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/alphadata/pkg/table"
)

// MemoryLoader serves arrow tables registered in process. It is useful for
// tests and for hosts that compute datasets themselves.
type MemoryLoader struct {
	mu     sync.RWMutex
	tables map[string]arrow.Table
	opts   options
}

// NewMemoryLoader creates an empty MemoryLoader.
func NewMemoryLoader(opts ...Option) *MemoryLoader {
	return &MemoryLoader{
		tables: make(map[string]arrow.Table),
		opts:   newOptions("memory_loader", opts),
	}
}

// Add registers tbl under name, replacing and releasing any previous table.
// The loader retains tbl.
func (l *MemoryLoader) Add(name string, tbl arrow.Table) {
	tbl.Retain()
	l.mu.Lock()
	prev, ok := l.tables[name]
	l.tables[name] = tbl
	l.mu.Unlock()
	if ok {
		prev.Release()
	}
}

// Remove drops name and reports whether it was registered.
func (l *MemoryLoader) Remove(name string) bool {
	l.mu.Lock()
	tbl, ok := l.tables[name]
	delete(l.tables, name)
	l.mu.Unlock()
	if ok {
		tbl.Release()
	}
	return ok
}

// Load wraps the registered table. Each call returns a new Table holding its
// own reference.
func (l *MemoryLoader) Load(_ context.Context, name string) (*table.Table, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tbl, ok := l.tables[name]
	if !ok {
		return nil, notFound(name)
	}
	return table.New(name, tbl, l.opts.tableOptions()...)
}

// List returns the registered names, sorted.
func (l *MemoryLoader) List(_ context.Context) ([]string, error) {
	l.mu.RLock()
	names := make([]string, 0, len(l.tables))
	for name := range l.tables {
		names = append(names, name)
	}
	l.mu.RUnlock()
	return sortedUnique(names), nil
}

// Close releases every registered table.
func (l *MemoryLoader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, tbl := range l.tables {
		tbl.Release()
		delete(l.tables, name)
	}
}
