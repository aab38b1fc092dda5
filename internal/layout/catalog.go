package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"sync"

	"github.com/cuihairu/gamebrowser/internal/dirtree"
)

// maxID bounds generated layout ids. Ids are random and not checked for
// collisions; GetByID resolves duplicates to the last one.
const maxID = 100000000

// ErrUnknownLayout is returned when an id names no layout in the catalog.
var ErrUnknownLayout = errors.New("layout: unknown layout id")

// Catalog is the process-wide set of input layouts. It is never empty and
// its default id always names a present layout. Every mutation is
// persisted before the lock is released.
type Catalog struct {
	mu        sync.Mutex
	path      string
	layouts   []Layout
	defaultID int
	newID     func() int
	logger    *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger used for load and persist diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIDSource overrides the random id generator.
func WithIDSource(f func() int) Option {
	return func(c *Catalog) {
		if f != nil {
			c.newID = f
		}
	}
}

func newCatalog(path string, opts []Option) *Catalog {
	c := &Catalog{
		path:   path,
		newID:  func() int { return rand.Intn(maxID) },
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// New returns an in-memory catalog holding only the canonical default.
func New(opts ...Option) *Catalog {
	c := newCatalog("", opts)
	c.resetLocked()
	return c
}

// Load reads the catalog persisted at path. A missing, unreadable or
// malformed document yields the canonical default catalog; path is kept so
// the next mutation rewrites it.
func Load(path string, opts ...Option) *Catalog {
	c := newCatalog(path, opts)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.logger.Info("no layout catalog found, using default", "path", path)
		c.resetLocked()
		return c
	case err != nil:
		c.logger.Warn("layout catalog unreadable, using default", "path", path, "error", err)
		c.resetLocked()
		return c
	}
	if err := c.decodeLocked(data); err != nil {
		c.logger.Warn("layout catalog invalid, using default", "path", path, "error", err)
		c.resetLocked()
	}
	return c
}

// Parse builds an in-memory catalog from a document.
func Parse(data []byte, opts ...Option) (*Catalog, error) {
	c := newCatalog("", opts)
	if err := c.decodeLocked(data); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) decodeLocked(data []byte) error {
	doc, hasDefault, err := ParseDocument(data)
	if err != nil {
		return err
	}
	c.layouts = nil
	for _, l := range doc.Presets {
		c.addLocked(l)
	}
	if hasDefault && c.indexLocked(doc.Default) >= 0 {
		c.defaultID = doc.Default
	} else {
		c.defaultID = c.layouts[0].ID
	}
	return nil
}

func (c *Catalog) resetLocked() {
	c.layouts = nil
	c.addLocked(Default())
}

// addLocked appends l; the first layout of an empty catalog becomes default.
func (c *Catalog) addLocked(l Layout) {
	c.layouts = append(c.layouts, l.Clone())
	if len(c.layouts) == 1 {
		c.defaultID = l.ID
	}
}

// indexLocked returns the position of the last layout with id, or -1.
func (c *Catalog) indexLocked(id int) int {
	for i := len(c.layouts) - 1; i >= 0; i-- {
		if c.layouts[i].ID == id {
			return i
		}
	}
	return -1
}

// Reload re-reads the persisted document, picking up edits made outside
// the process. On any error the current state is kept.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("reload layouts: %w", err)
	}
	fresh := newCatalog(c.path, nil)
	if err := fresh.decodeLocked(data); err != nil {
		return fmt.Errorf("reload layouts: %w", err)
	}
	c.mu.Lock()
	c.layouts, c.defaultID = fresh.layouts, fresh.defaultID
	c.mu.Unlock()
	c.logger.Info("layout catalog reloaded", "path", c.path, "layouts", len(fresh.layouts))
	return nil
}

// Path is where the catalog persists, empty for in-memory catalogs.
func (c *Catalog) Path() string { return c.path }

// NewLayout returns a layout with a fresh random id. It is not added.
func (c *Catalog) NewLayout(name string, buttons []Button) Layout {
	c.mu.Lock()
	id := c.newID()
	c.mu.Unlock()
	l := Layout{ID: id, Name: name, Buttons: make([]Button, 0, len(buttons))}
	for _, b := range buttons {
		l.Buttons = append(l.Buttons, b.normalized())
	}
	return l
}

// Add appends l and persists.
func (c *Catalog) Add(l Layout) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(l.normalized())
	return c.persistLocked()
}

// Delete removes the layout with id and persists. An emptied catalog gets
// the canonical default back; removing the default promotes the first
// remaining layout.
func (c *Catalog) Delete(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownLayout, id)
	}
	c.layouts = append(c.layouts[:i], c.layouts[i+1:]...)
	if len(c.layouts) == 0 {
		c.addLocked(Default())
	}
	if id == c.defaultID {
		c.defaultID = c.layouts[0].ID
	}
	return c.persistLocked()
}

// SetDefault selects id as the default. Unknown ids are rejected and leave
// the catalog unchanged.
func (c *Catalog) SetDefault(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexLocked(id) < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownLayout, id)
	}
	c.defaultID = id
	return c.persistLocked()
}

// Update replaces the name and buttons of an existing layout.
func (c *Catalog) Update(l Layout) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(l.ID)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownLayout, l.ID)
	}
	c.layouts[i] = l.normalized()
	return c.persistLocked()
}

// GetByID returns the last layout with id, or the default layout.
func (c *Catalog) GetByID(id int) Layout {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.layouts[i].Clone()
	}
	return c.layouts[c.indexLocked(c.defaultID)].Clone()
}

// ResolveID maps id to the id GetByID would return.
func (c *Catalog) ResolveID(id int) int { return c.GetByID(id).ID }

// Default returns the current default layout.
func (c *Catalog) Default() Layout { return c.GetByID(c.DefaultID()) }

func (c *Catalog) DefaultID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaultID
}

// Layouts returns a snapshot in catalog order.
func (c *Catalog) Layouts() []Layout {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Layout, len(c.layouts))
	for i, l := range c.layouts {
		out[i] = l.Clone()
	}
	return out
}

func (c *Catalog) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.layouts))
	for i, l := range c.layouts {
		out[i] = l.Name
	}
	return out
}

func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.layouts)
}

// Document snapshots the catalog in its persisted shape.
func (c *Catalog) Document() Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.documentLocked()
}

func (c *Catalog) documentLocked() Document {
	doc := Document{Version: DocumentVersion, Default: c.defaultID, Presets: make([]Layout, len(c.layouts))}
	for i, l := range c.layouts {
		doc.Presets[i] = l.Clone()
	}
	return doc
}

func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Document())
}

// Export renders one layout (or the default) as JSON.
func (c *Catalog) Export(id int) ([]byte, error) {
	return json.MarshalIndent(c.GetByID(id), "", "  ")
}

// Import adds a layout exported by Export under a fresh id.
func (c *Catalog) Import(data []byte) (Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("decode layout: %w", err)
	}
	l = c.NewLayout(l.Name, l.Buttons)
	if err := c.Add(l); err != nil {
		return l, err
	}
	return l, nil
}

// Save persists the current state.
func (c *Catalog) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistLocked()
}

func (c *Catalog) persistLocked() error {
	if c.path == "" {
		return nil
	}
	data, err := MarshalDocument(c.documentLocked())
	if err != nil {
		return err
	}
	if err := dirtree.WriteFileAtomic(c.path, data); err != nil {
		c.logger.Error("persist layout catalog failed", "path", c.path, "error", err)
		return fmt.Errorf("persist layouts: %w", err)
	}
	return nil
}
