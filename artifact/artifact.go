// Package artifact defines the identity of every file flashbuild produces and
// the fixed production edges between them.
//
// The graph is small and static:
//
//	CompiledObject → ELF → {BIN, HEX, Listing}
//
// Paths are a pure function of (root, triple, profile, platform, kind), so two
// different artifact identities never share a file.
package artifact

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/teranos/flashbuild/errors"
)

// Profile selects the optimization/debug-info variant of a build
type Profile int

const (
	Release Profile = iota
	Debug
)

// String returns the output subdirectory name for the profile
func (p Profile) String() string {
	if p == Debug {
		return "debug"
	}
	return "release"
}

// ParseProfile parses "release" or "debug"
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(s) {
	case "release", "":
		return Release, nil
	case "debug":
		return Debug, nil
	default:
		return Release, errors.NewConfigError("unknown build profile %q (want release or debug)", s)
	}
}

// Kind is a production stage
type Kind int

const (
	CompiledObject Kind = iota
	ELF
	BIN
	HEX
	Listing
)

var kindNames = map[Kind]string{
	CompiledObject: "object",
	ELF:            "elf",
	BIN:            "bin",
	HEX:            "hex",
	Listing:        "listing",
}

var kindSuffixes = map[Kind]string{
	CompiledObject: "",
	ELF:            ".elf",
	BIN:            ".bin",
	HEX:            ".hex",
	Listing:        ".lst",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Suffix returns the file extension of the kind, including the dot
func (k Kind) Suffix() string {
	return kindSuffixes[k]
}

// Kinds lists every kind in production order
func Kinds() []Kind {
	return []Kind{CompiledObject, ELF, BIN, HEX, Listing}
}

// Sources returns the kinds that must be produced before k.
// CompiledObject has no incoming edge.
func (k Kind) Sources() []Kind {
	switch k {
	case ELF:
		return []Kind{CompiledObject}
	case BIN, HEX, Listing:
		return []Kind{ELF}
	default:
		return nil
	}
}

// IsFinal reports whether k is a flashable image or the ELF itself,
// the kinds after which a size report is meaningful.
func (k Kind) IsFinal() bool {
	return k == ELF || k == BIN || k == HEX
}

// TargetSpec fixes what is being built: the firmware variant and the
// compilation target. Neither field has a default.
type TargetSpec struct {
	Platform string `json:"platform"`
	Triple   string `json:"target"`
}

// Validate returns ErrConfig if either identity is missing
func (t TargetSpec) Validate() error {
	if strings.TrimSpace(t.Platform) == "" {
		return errors.WithHint(errors.NewConfigError("platform is required"),
			"set board.platform in flashbuild.toml, PLATFORM in the environment, or pass --platform")
	}
	if strings.TrimSpace(t.Triple) == "" {
		return errors.WithHint(errors.NewConfigError("target triple is required"),
			"set board.target in flashbuild.toml, TARGET in the environment, or pass --target")
	}
	return nil
}

func (t TargetSpec) String() string {
	return t.Platform + "@" + t.Triple
}

// ID uniquely identifies an artifact within one output root
type ID struct {
	Profile  Profile
	Platform string
	Kind     Kind
}

// String renders the ID as "<profile>/<platform><suffix>", e.g. "release/imix.bin"
func (id ID) String() string {
	return id.Profile.String() + "/" + id.Platform + id.Kind.Suffix()
}

// Layout derives artifact paths from an output root and a target triple.
//
// The persisted layout is
//
//	<root>/<triple>/release/<platform>{,.elf,.bin,.hex,.lst}
//	<root>/<triple>/debug/<platform>{,.elf,.bin,.hex,.lst}
type Layout struct {
	Root   string
	Triple string
}

// NewLayout returns a layout for one target triple under root
func NewLayout(root, triple string) Layout {
	return Layout{Root: root, Triple: triple}
}

// TripleDir is the per-triple output directory
func (l Layout) TripleDir() string {
	return filepath.Join(l.Root, l.Triple)
}

// ProfileDir is the directory holding every artifact of one profile
func (l Layout) ProfileDir(p Profile) string {
	return filepath.Join(l.TripleDir(), p.String())
}

// Path returns the filesystem path of an artifact
func (l Layout) Path(id ID) string {
	return filepath.Join(l.ProfileDir(id.Profile), id.Platform+id.Kind.Suffix())
}
