package artifact

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/flashbuild/errors"
)

func TestLayoutPaths(t *testing.T) {
	l := NewLayout("target", "thumbv7em-none-eabi")

	tests := []struct {
		id   ID
		want string
	}{
		{ID{Release, "imix", CompiledObject}, "target/thumbv7em-none-eabi/release/imix"},
		{ID{Release, "imix", ELF}, "target/thumbv7em-none-eabi/release/imix.elf"},
		{ID{Release, "imix", BIN}, "target/thumbv7em-none-eabi/release/imix.bin"},
		{ID{Debug, "imix", HEX}, "target/thumbv7em-none-eabi/debug/imix.hex"},
		{ID{Debug, "hail", Listing}, "target/thumbv7em-none-eabi/debug/hail.lst"},
	}

	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), l.Path(tt.id))
		})
	}
}

func TestPathsAreUniquePerIdentity(t *testing.T) {
	l := NewLayout("out", "thumbv6m-none-eabi")
	seen := map[string]ID{}

	for _, p := range []Profile{Release, Debug} {
		for _, platform := range []string{"imix", "hail"} {
			for _, k := range Kinds() {
				id := ID{p, platform, k}
				path := l.Path(id)
				prev, dup := seen[path]
				require.False(t, dup, "%s and %s share %s", prev, id, path)
				seen[path] = id
			}
		}
	}
}

func TestKindSources(t *testing.T) {
	assert.Empty(t, CompiledObject.Sources())
	assert.Equal(t, []Kind{CompiledObject}, ELF.Sources())
	for _, k := range []Kind{BIN, HEX, Listing} {
		assert.Equal(t, []Kind{ELF}, k.Sources(), k.String())
	}
}

func TestKindIsFinal(t *testing.T) {
	assert.False(t, CompiledObject.IsFinal())
	assert.True(t, ELF.IsFinal())
	assert.True(t, BIN.IsFinal())
	assert.True(t, HEX.IsFinal())
	assert.False(t, Listing.IsFinal())
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile("Debug")
	require.NoError(t, err)
	assert.Equal(t, Debug, p)

	p, err = ParseProfile("")
	require.NoError(t, err)
	assert.Equal(t, Release, p)

	_, err = ParseProfile("fast")
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestTargetSpecValidate(t *testing.T) {
	assert.NoError(t, TargetSpec{Platform: "imix", Triple: "thumbv7em-none-eabi"}.Validate())

	err := TargetSpec{Triple: "thumbv7em-none-eabi"}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "platform")

	err = TargetSpec{Platform: "imix", Triple: "  "}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "target triple")
}

func TestStateTransitions(t *testing.T) {
	s := States{}
	id := ID{Release, "imix", BIN}

	assert.Equal(t, Unresolved, s.Get(id))
	require.NoError(t, s.Transition(id, Resolving))
	require.NoError(t, s.Transition(id, Rebuilding))
	require.NoError(t, s.Transition(id, Produced))
	assert.True(t, s.Get(id).IsTerminal())
	assert.True(t, s.Get(id).IsValid())

	err := s.Transition(id, Rebuilding)
	require.Error(t, err)
	assert.Equal(t, "invalid transition for release/imix.bin: PRODUCED -> REBUILDING", err.Error())
	assert.Equal(t, Produced, s.Get(id), "rejected transition leaves the state alone")
}

func TestStateTransitions_Rejected(t *testing.T) {
	assert.False(t, CanTransition(Unresolved, Produced))
	assert.False(t, CanTransition(UpToDate, Rebuilding))
	assert.False(t, CanTransition(Failed, Resolving))
	assert.True(t, CanTransition(Resolving, Failed))
	assert.False(t, Failed.IsValid())
}
