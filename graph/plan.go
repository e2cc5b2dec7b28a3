package graph

import (
	"os"
	"time"

	"github.com/teranos/flashbuild/artifact"
)

// Status is what Produce would do with an artifact
type Status string

const (
	StatusMissing  Status = "missing"
	StatusStale    Status = "stale"
	StatusUpToDate Status = "up-to-date"
	// StatusCompiler marks the compiled object, whose staleness only the
	// compile step can judge
	StatusCompiler Status = "compiler decides"
)

// PlanEntry describes one artifact of a plan
type PlanEntry struct {
	Artifact string    `json:"artifact"`
	Kind     string    `json:"kind"`
	Path     string    `json:"path"`
	Status   Status    `json:"status"`
	Modified time.Time `json:"modified,omitempty"`
}

// Plan reports, without running any tool, the state of every artifact the
// requested one depends on, sources first.
func (b *Builder) Plan(kind artifact.Kind, profile artifact.Profile) []PlanEntry {
	var entries []PlanEntry
	seen := make(map[artifact.ID]Status)
	b.plan(b.ID(kind, profile), seen, &entries)
	return entries
}

func (b *Builder) plan(id artifact.ID, seen map[artifact.ID]Status, entries *[]PlanEntry) (Status, time.Time) {
	path := b.layout.Path(id)
	entry := PlanEntry{Artifact: id.String(), Kind: id.Kind.String(), Path: path}

	info, err := os.Stat(path)
	exists := err == nil
	if exists {
		entry.Modified = info.ModTime()
	}

	if st, ok := seen[id]; ok {
		return st, entry.Modified
	}

	switch {
	case !exists:
		entry.Status = StatusMissing
		// Sources still show their own state
		for _, src := range id.Kind.Sources() {
			b.plan(b.ID(src, id.Profile), seen, entries)
		}
	case id.Kind == artifact.CompiledObject:
		entry.Status = StatusCompiler
	default:
		entry.Status = StatusUpToDate
		for _, src := range id.Kind.Sources() {
			st, mtime := b.plan(b.ID(src, id.Profile), seen, entries)
			if st == StatusMissing || st == StatusStale || entry.Modified.Before(mtime) {
				entry.Status = StatusStale
			}
		}
	}

	seen[id] = entry.Status
	*entries = append(*entries, entry)
	return entry.Status, entry.Modified
}
