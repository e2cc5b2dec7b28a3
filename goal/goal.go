// Package goal maps the command-line goals onto artifact production.
package goal

import (
	"sort"

	"github.com/teranos/flashbuild/artifact"
	"github.com/teranos/flashbuild/errors"
)

// Action is what a goal does once the environment is validated
type Action int

const (
	ActionProduce Action = iota // produce an artifact through the graph
	ActionDoc                   // external documentation step
	ActionCheck                 // verify the compiled object without producing it
	ActionClean                 // remove the output root
)

// Goal is one command-line entry point
type Goal struct {
	Name        string
	Description string
	Action      Action
	Kind        artifact.Kind
	Profile     artifact.Profile
}

// NeedsEnvironment reports whether the goal runs the toolchain
func (g Goal) NeedsEnvironment() bool {
	return g.Action != ActionClean
}

var goals = map[string]Goal{
	"build":         {Name: "build", Description: "Build the release flash image (.bin)", Action: ActionProduce, Kind: artifact.BIN, Profile: artifact.Release},
	"listing":       {Name: "listing", Description: "Disassemble the release ELF (.lst)", Action: ActionProduce, Kind: artifact.Listing, Profile: artifact.Release},
	"debug-build":   {Name: "debug-build", Description: "Build the debug flash image (.bin)", Action: ActionProduce, Kind: artifact.BIN, Profile: artifact.Debug},
	"debug-listing": {Name: "debug-listing", Description: "Disassemble the debug ELF (.lst)", Action: ActionProduce, Kind: artifact.Listing, Profile: artifact.Debug},
	"hex":           {Name: "hex", Description: "Build the release Intel HEX image (.hex)", Action: ActionProduce, Kind: artifact.HEX, Profile: artifact.Release},
	"debug-hex":     {Name: "debug-hex", Description: "Build the debug Intel HEX image (.hex)", Action: ActionProduce, Kind: artifact.HEX, Profile: artifact.Debug},
	"documentation": {Name: "documentation", Description: "Generate crate documentation", Action: ActionDoc, Profile: artifact.Release},
	"type-check":    {Name: "type-check", Description: "Type-check the crate without linking", Action: ActionCheck, Profile: artifact.Release},
	"clean":         {Name: "clean", Description: "Remove the output root", Action: ActionClean},
}

// All returns every goal sorted by name
func All() []Goal {
	all := make([]Goal, 0, len(goals))
	for _, g := range goals {
		all = append(all, g)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Lookup returns the goal called name
func Lookup(name string) (Goal, error) {
	g, ok := goals[name]
	if !ok {
		return Goal{}, errors.WithHint(errors.NewConfigError("unknown goal %q", name),
			"run `flashbuild --help` for the list of goals")
	}
	return g, nil
}
