package runner

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/flashbuild/errors"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestInvocation_Command(t *testing.T) {
	inv := Invocation{
		Argv: []string{"/opt/gcc/bin/arm-none-eabi-objcopy", "--verbose"},
		Args: []string{"--output-target=binary", "in.elf", "out bin"},
		Env:  []string{"KERNEL_VERSION=v2.1"},
	}

	assert.Equal(t, []string{"/opt/gcc/bin/arm-none-eabi-objcopy", "--verbose", "--output-target=binary", "in.elf", "out bin"}, inv.Command())
	assert.Equal(t, "arm-none-eabi-objcopy", inv.Name())
	assert.Equal(t, `KERNEL_VERSION=v2.1 /opt/gcc/bin/arm-none-eabi-objcopy --verbose --output-target=binary in.elf 'out bin'`, inv.String())
	assert.Empty(t, Invocation{}.Name())
}

func TestExecRunner_Missing(t *testing.T) {
	r := NewExecRunner(nil)
	err := r.Run(context.Background(), Invocation{Argv: []string{"flashbuild-no-such-tool-4f1c"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBinaryNotFound))
	assert.False(t, errors.Is(err, errors.ErrToolMissing))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestExecRunner_ExitStatus(t *testing.T) {
	requireShell(t)
	var stderr bytes.Buffer
	r := NewExecRunner(nil, WithOutput(&bytes.Buffer{}, &stderr))

	err := r.Run(context.Background(), Invocation{
		Argv: []string{"sh", "-c"},
		Args: []string{"echo 'error[E0425]: cannot find value' >&2; exit 101"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrToolFailed))
	assert.Contains(t, err.Error(), "status 101")
	assert.Equal(t, "error[E0425]: cannot find value\n", stderr.String(), "diagnostics pass through unmodified")
}

func TestExecRunner_EnvAndDir(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	r := NewExecRunner(nil)

	out, err := Output(context.Background(), r, Invocation{
		Argv: []string{"sh", "-c"},
		Args: []string{`printf '%s %s' "$KERNEL_VERSION" "$(pwd)"`},
		Env:  []string{"KERNEL_VERSION=notgit"},
		Dir:  dir,
	})
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, []string{"notgit " + dir, "notgit " + resolved}, out)
}

func TestExecRunner_Cancelled(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewExecRunner(nil).Run(ctx, Invocation{Argv: []string{"sh", "-c", "sleep 5"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExecRunner_Echo(t *testing.T) {
	requireShell(t)
	core, logs := observer.New(zapcore.InfoLevel)
	r := NewExecRunner(zap.New(core).Sugar(), WithEcho(true))

	require.NoError(t, r.Run(context.Background(), Invocation{Argv: []string{"sh", "-c", "true"}}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "sh -c true", logs.All()[0].Message)
}

func TestLineWriter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	w := NewLineWriter(zap.New(core).Sugar(), "warn")

	_, _ = w.Write([]byte("text\t data\t  bss\n  1024\t"))
	_, _ = w.Write([]byte("   0\t 4096\r\n\n"))
	_, _ = w.Write([]byte("partial"))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "text\t data\t  bss", logs.All()[0].ContextMap()["message"])
	assert.Equal(t, "  1024\t   0\t 4096", logs.All()[1].ContextMap()["message"])
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)

	w.Flush()
	require.Equal(t, 3, logs.Len())
	assert.Equal(t, "partial", logs.All()[2].ContextMap()["message"])
}
