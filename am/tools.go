package am

import (
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/flashbuild/errors"
)

// Tool names an external program flashbuild shells out to
type Tool string

const (
	ToolCargo   Tool = "cargo"
	ToolRustup  Tool = "rustup"
	ToolObjcopy Tool = "objcopy"
	ToolObjdump Tool = "objdump"
	ToolSize    Tool = "size"
)

// Tools lists every external tool in a stable order
func Tools() []Tool {
	return []Tool{ToolCargo, ToolRustup, ToolObjcopy, ToolObjdump, ToolSize}
}

// override returns the raw configured value for t, empty when unset
func (c *Config) override(t Tool) string {
	switch t {
	case ToolCargo:
		return c.Toolchain.Cargo
	case ToolRustup:
		return c.Toolchain.Rustup
	case ToolObjcopy:
		return c.Toolchain.Objcopy
	case ToolObjdump:
		return c.Toolchain.Objdump
	case ToolSize:
		return c.Toolchain.Size
	default:
		return ""
	}
}

// ToolCommand returns argv for t: the override split as shell words, or the
// conventional name. Binutils default to <prefix>-<tool>.
func (c *Config) ToolCommand(t Tool) ([]string, error) {
	raw := strings.TrimSpace(c.override(t))
	if raw == "" {
		switch t {
		case ToolObjcopy, ToolObjdump, ToolSize:
			prefix := c.Toolchain.Prefix
			if prefix == "" {
				prefix = DefaultToolchainPrefix
			}
			return []string{prefix + "-" + string(t)}, nil
		default:
			return []string{string(t)}, nil
		}
	}

	words, err := shellquote.Split(raw)
	if err != nil {
		return nil, errors.Wrapf(errors.Wrap(errors.ErrConfig, err.Error()), "toolchain.%s = %q", t, raw)
	}
	if len(words) == 0 {
		return nil, errors.NewConfigError("toolchain.%s is blank", t)
	}
	return words, nil
}

// ObjdumpFlags returns the listing flags, falling back to the default set
func (c *Config) ObjdumpFlags() []string {
	if len(c.Toolchain.ObjdumpFlags) == 0 {
		return DefaultObjdumpFlags
	}
	return c.Toolchain.ObjdumpFlags
}
