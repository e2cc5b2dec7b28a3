// Package boards reads the optional board catalog (boards.toml).
//
// The catalog maps a platform name to what the compile step needs to know
// about it: its linker script, extra rustc flags, the crate directory and the
// target triples it may be built for.
//
//	[boards.imix]
//	description   = "imix development board"
//	dir           = "boards/imix"
//	linker_script = "layout.ld"
//	rustflags     = ["-C", "link-arg=--print-memory-usage"]
//	targets       = ["thumbv7em-none-eabi"]
package boards

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/teranos/flashbuild/artifact"
	"github.com/teranos/flashbuild/errors"
)

// Board is one catalog entry
type Board struct {
	Name         string   `toml:"-" json:"name"`
	Description  string   `toml:"description" json:"description,omitempty"`
	Dir          string   `toml:"dir" json:"dir,omitempty"`
	LinkerScript string   `toml:"linker_script" json:"linker_script,omitempty"`
	RustFlags    []string `toml:"rustflags" json:"rustflags,omitempty"`
	Targets      []string `toml:"targets" json:"targets,omitempty"`
}

// Supports reports whether triple may be built for this board.
// A board without a target list accepts any triple.
func (b *Board) Supports(triple string) bool {
	if len(b.Targets) == 0 {
		return true
	}
	for _, t := range b.Targets {
		if t == triple {
			return true
		}
	}
	return false
}

// Catalog is the parsed boards.toml
type Catalog struct {
	Path   string
	Boards map[string]*Board
}

type catalogFile struct {
	Boards map[string]*Board `toml:"boards"`
}

// Empty returns a catalog with no entries
func Empty() *Catalog {
	return &Catalog{Boards: map[string]*Board{}}
}

// Load parses the catalog at path. Relative board directories are resolved
// against the catalog's own directory.
func Load(path string) (*Catalog, error) {
	var file catalogFile
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return nil, errors.Wrapf(errors.Wrap(errors.ErrConfig, err.Error()), "failed to parse board catalog %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.WithHint(
			errors.NewConfigError("board catalog %s: unknown keys %s", path, strings.Join(keys, ", ")),
			"valid board keys are description, dir, linker_script, rustflags and targets")
	}

	base := filepath.Dir(path)
	catalog := &Catalog{Path: path, Boards: make(map[string]*Board, len(file.Boards))}
	for name, b := range file.Boards {
		if b == nil {
			b = &Board{}
		}
		b.Name = name
		if b.Dir != "" && !filepath.IsAbs(b.Dir) {
			b.Dir = filepath.Join(base, b.Dir)
		}
		catalog.Boards[name] = b
	}
	return catalog, nil
}

// LoadOptional loads the catalog at path. A missing file is an empty catalog
// unless the path was configured explicitly.
func LoadOptional(path string, explicit bool) (*Catalog, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return Empty(), nil
		}
		return nil, errors.Wrapf(errors.Wrap(errors.ErrConfig, err.Error()), "board catalog %s", path)
	}
	return Load(path)
}

// Names returns the catalog's platforms in sorted order
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Boards))
	for name := range c.Boards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the entry for platform
func (c *Catalog) Lookup(platform string) (*Board, bool) {
	b, ok := c.Boards[platform]
	return b, ok
}

// Resolve returns the board for spec. Platforms absent from the catalog get
// an empty entry so the configured defaults apply. A listed platform rejects
// triples outside its target list.
func (c *Catalog) Resolve(spec artifact.TargetSpec) (*Board, error) {
	b, ok := c.Lookup(spec.Platform)
	if !ok {
		return &Board{Name: spec.Platform}, nil
	}
	if !b.Supports(spec.Triple) {
		return nil, errors.WithHintf(
			errors.NewConfigError("platform %s does not support target %s", spec.Platform, spec.Triple),
			"supported targets: %s", strings.Join(b.Targets, ", "))
	}
	return b, nil
}
