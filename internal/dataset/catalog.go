package dataset

import (
	"fmt"
	"slices"
)

// Info describes a loaded dataset.
type Info struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Rows    int64    `json:"rows"`
	Columns []string `json:"columns"`
}

// HasColumn reports whether the dataset has the named column.
func (i *Info) HasColumn(column string) bool {
	return slices.Contains(i.Columns, column)
}

// MissingColumns returns the entries of want not present in the dataset,
// preserving their order.
func (i *Info) MissingColumns(want []string) []string {
	var missing []string
	for _, c := range want {
		if !i.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Catalog records the outcome of a load.
type Catalog struct {
	dir     string
	loaded  map[string]*Info
	order   []string
	missing []string
}

func newCatalog(dir string) *Catalog {
	return &Catalog{dir: dir, loaded: make(map[string]*Info)}
}

func (c *Catalog) add(info *Info) {
	c.loaded[info.Name] = info
	c.order = append(c.order, info.Name)
}

// Dir returns the outputs directory the catalog was loaded from.
func (c *Catalog) Dir() string {
	return c.dir
}

// Has reports whether the dataset was loaded.
func (c *Catalog) Has(name string) bool {
	_, ok := c.loaded[name]
	return ok
}

// Get returns the loaded dataset or an error wrapping ErrNotLoaded.
func (c *Catalog) Get(name string) (*Info, error) {
	info, ok := c.loaded[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotLoaded)
	}
	return info, nil
}

// HasColumn reports whether the dataset was loaded and has the column.
func (c *Catalog) HasColumn(name, column string) bool {
	info, ok := c.loaded[name]
	return ok && info.HasColumn(column)
}

// Names returns the loaded dataset names in load order.
func (c *Catalog) Names() []string {
	return slices.Clone(c.order)
}

// Loaded returns the loaded datasets in load order.
func (c *Catalog) Loaded() []*Info {
	out := make([]*Info, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.loaded[n])
	}
	return out
}

// Missing returns the names of datasets whose files were not found.
func (c *Catalog) Missing() []string {
	return slices.Clone(c.missing)
}

// Empty reports whether nothing was loaded.
func (c *Catalog) Empty() bool {
	return len(c.loaded) == 0
}
