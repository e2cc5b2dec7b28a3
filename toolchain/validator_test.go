package toolchain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/flashbuild/am"
	"github.com/teranos/flashbuild/errors"
	fbtest "github.com/teranos/flashbuild/internal/testing"
)

const triple = "thumbv7em-none-eabi"

const componentList = `cargo-x86_64-unknown-linux-gnu (installed)
rls-x86_64-unknown-linux-gnu
rust-src (installed)
rust-std-thumbv7em-none-eabi (installed)
`

const targetList = `aarch64-apple-darwin
thumbv6m-none-eabi
thumbv7em-none-eabi (installed)
x86_64-unknown-linux-gnu (installed) (default)
`

func testConfig() *am.Config {
	return &am.Config{
		Board: am.BoardConfig{Platform: "imix", Target: triple},
		Manager: am.ManagerConfig{
			MinVersion:      "1.11.0",
			SourceComponent: "rust-src",
		},
	}
}

// healthyRunner answers like a fully provisioned host
func healthyRunner() *fbtest.FakeRunner {
	return fbtest.NewFakeRunner().
		On("rustup --version", fbtest.Stdout("rustup 1.27.1 (54dd3d00f 2024-04-24)\n")).
		On("rustup component list", fbtest.Stdout(componentList)).
		On("rustup target list", fbtest.Stdout(targetList))
}

func newValidator(t *testing.T, cfg *am.Config, r *fbtest.FakeRunner) *Validator {
	t.Helper()
	m, err := NewRustup(cfg, r)
	require.NoError(t, err)
	return NewValidator(cfg, m, nil)
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		output string
		want   string
		ok     bool
	}{
		{"rustup 1.27.1 (54dd3d00f 2024-04-24)", "1.27.1", true},
		{"rustup 1.9", "1.9.0", true},
		{"rustup 1.28.0-beta.3 (abc 2025-01-01)", "1.28.0-beta.3", true},
		{"rustup-init unknown", "0.0.0", false},
		{"", "0.0.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			v, ok := ParseVersion(tt.output)
			assert.Equal(t, tt.want, v.String())
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestOutdated(t *testing.T) {
	min, err := ParseMinimum("1.11.0")
	require.NoError(t, err)

	older, _ := ParseVersion("1.10.9")
	same, _ := ParseVersion("1.11.0")
	newer, _ := ParseVersion("1.27.1")
	zero, _ := ParseVersion("junk")

	assert.True(t, Outdated(older, min))
	assert.False(t, Outdated(same, min), "equal is not outdated")
	assert.False(t, Outdated(newer, min))
	assert.True(t, Outdated(zero, min), "malformed output takes the update path")

	_, err = ParseMinimum("eleven")
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestValidate_Healthy(t *testing.T) {
	r := healthyRunner()
	report, err := newValidator(t, testConfig(), r).Validate(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Healthy())
	assert.Empty(t, report.Warnings())
	assert.Equal(t, "1.27.1", report.ManagerVersion)
	assert.Len(t, report.Checks, 3)

	assert.Zero(t, r.Count("rustup update"))
	assert.Zero(t, r.Count("rustup component add"))
	assert.Zero(t, r.Count("rustup target add"))
}

func TestValidate_OutdatedUpdatesOnce(t *testing.T) {
	for _, version := range []string{"rustup 1.10.0 (2018-01-01)", "not a version"} {
		t.Run(version, func(t *testing.T) {
			r := healthyRunner().On("rustup --version", fbtest.Stdout(version))

			report, err := newValidator(t, testConfig(), r).Validate(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 1, r.Count("rustup update"))
			require.Len(t, report.Warnings(), 1)
			assert.True(t, errors.Is(report.Warnings()[0], errors.ErrToolOutdated))
			assert.False(t, errors.IsFatal(report.Warnings()[0]))
			assert.Equal(t, OutcomeUpdated, report.Checks[0].Outcome)

			// Validation continues after the update
			assert.Equal(t, 1, r.Count("rustup component list"))
			assert.Equal(t, 1, r.Count("rustup target list"))
		})
	}
}

func TestValidate_UpdateFailureContinues(t *testing.T) {
	r := healthyRunner().
		On("rustup --version", fbtest.Stdout("rustup 1.0.0")).
		On("rustup update", fbtest.Fail(1, "error: could not download"))

	report, err := newValidator(t, testConfig(), r).Validate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, r.Count("rustup update"), "no retry")
	assert.Equal(t, OutcomeUpdateFailed, report.Checks[0].Outcome)
	assert.True(t, errors.Is(report.Warnings()[0], errors.ErrToolOutdated))
	assert.Len(t, report.Checks, 3)
}

func TestValidate_ToolMissing(t *testing.T) {
	r := fbtest.NewFakeRunner().Missing("rustup")

	report, err := newValidator(t, testConfig(), r).Validate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrToolMissing))
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, OutcomeMissing, report.Checks[0].Outcome)

	assert.Len(t, r.Calls(), 1, "only the version query ran")
}

func TestValidate_InstallsMissingComponents(t *testing.T) {
	r := healthyRunner().
		On("rustup component list", fbtest.Stdout("rust-src\nrustfmt (installed)\n")).
		On("rustup target list", fbtest.Stdout("thumbv7em-none-eabi\n"))

	report, err := newValidator(t, testConfig(), r).Validate(context.Background())
	require.NoError(t, err)

	require.Len(t, r.CallsTo("rustup component add"), 1)
	assert.Equal(t, []string{"component", "add", "rust-src"}, r.CallsTo("rustup component add")[0].Args)
	require.Len(t, r.CallsTo("rustup target add"), 1)
	assert.Equal(t, []string{"target", "add", triple}, r.CallsTo("rustup target add")[0].Args)

	assert.Equal(t, OutcomeInstalled, report.Checks[1].Outcome)
	assert.Equal(t, OutcomeInstalled, report.Checks[2].Outcome)
	assert.Empty(t, report.Warnings())
	assert.False(t, report.Healthy())
}

func TestValidate_InstallFailureIsWarning(t *testing.T) {
	r := healthyRunner().
		On("rustup component list", fbtest.Stdout("")).
		On("rustup component add", fbtest.Fail(1, "error: toolchain 'stable' does not support components")).
		On("rustup target list", fbtest.Stdout("")).
		On("rustup target add", fbtest.Fail(1, ""))

	report, err := newValidator(t, testConfig(), r).Validate(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Warnings(), 2)
	for _, w := range report.Warnings() {
		assert.True(t, errors.Is(w, errors.ErrComponentMissing))
		assert.False(t, errors.IsFatal(w))
	}
	assert.Equal(t, OutcomeInstallFailed, report.Checks[1].Outcome)
	assert.NotEmpty(t, report.Checks[1].Error)

	// Not re-verified
	assert.Equal(t, 1, r.Count("rustup component list"))
	assert.Equal(t, 1, r.Count("rustup target list"))
}

func TestValidate_CancelDuringPause(t *testing.T) {
	cfg := testConfig()
	cfg.Manager.UpdatePauseSeconds = 60
	r := healthyRunner().On("rustup --version", fbtest.Stdout("rustup 1.2.0"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newValidator(t, cfg, r).Validate(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Zero(t, r.Count("rustup update"), "cancelling the window skips the update")
}

func TestValidate_OverrideCarriesArgs(t *testing.T) {
	cfg := testConfig()
	cfg.Toolchain.Rustup = "rustup --quiet"
	r := healthyRunner()

	_, err := newValidator(t, cfg, r).Validate(context.Background())
	require.NoError(t, err)

	calls := r.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, []string{"rustup", "--quiet", "--version"}, calls[0].Command())
}

func TestInstalled(t *testing.T) {
	assert.Equal(t,
		[]string{"thumbv7em-none-eabi", "x86_64-unknown-linux-gnu"},
		installed(targetList))
	assert.Empty(t, installed(""))
}
