package am

import (
	"github.com/spf13/viper"
)

// Default values shared by SetDefaults and the zero-value getters
const (
	DefaultToolchainPrefix = "arm-none-eabi"
	DefaultMinRustup       = "1.11.0"
	DefaultSourceComponent = "rust-src"
	DefaultOutputRoot      = "target"
	DefaultLinkerScript    = "layout.ld"
	DefaultStampEnvVar     = "KERNEL_VERSION"
	DefaultStampFallback   = "notgit"
	DefaultCatalogFile     = "boards.toml"
	ProjectConfigFile      = "flashbuild.toml"
)

// DefaultObjdumpFlags disassemble everything with source interleaved,
// thumb decoding forced, symbols demangled and section headers shown.
var DefaultObjdumpFlags = []string{
	"--disassemble-all",
	"--source",
	"--disassembler-options=force-thumb",
	"-C",
	"--section-headers",
}

// SetDefaults configures default values for all configuration options.
// board.platform and board.target deliberately have none.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("board.source_dir", ".")
	v.SetDefault("board.catalog", "")

	v.SetDefault("toolchain.prefix", DefaultToolchainPrefix)
	v.SetDefault("toolchain.cargo", "cargo")
	v.SetDefault("toolchain.rustup", "rustup")
	v.SetDefault("toolchain.objdump_flags", DefaultObjdumpFlags)

	v.SetDefault("linker.script", DefaultLinkerScript)
	v.SetDefault("linker.linker", "rust-lld")
	v.SetDefault("linker.flavor", "ld.lld")
	v.SetDefault("linker.relocation_model", "dynamic-no-pic")
	v.SetDefault("linker.max_page_size", 512)

	v.SetDefault("manager.min_version", DefaultMinRustup)
	v.SetDefault("manager.source_component", DefaultSourceComponent)
	v.SetDefault("manager.update_pause_seconds", 3) // operator gets a chance to Ctrl-C
	v.SetDefault("manager.skip", false)

	v.SetDefault("output.root", DefaultOutputRoot)

	v.SetDefault("stamp.env_var", DefaultStampEnvVar)
	v.SetDefault("stamp.fallback", DefaultStampFallback)

	v.SetDefault("log.verbosity", 0)
	v.SetDefault("log.json", false)
	v.SetDefault("log.theme", "everforest")

	v.SetDefault("watch.debounce_ms", 500)
	v.SetDefault("watch.ignore", []string{".git", "target"})
}

// BindLegacyEnvVars binds the plain variable names operators already export
// for make-driven builds. FLASHBUILD_* names take precedence.
func BindLegacyEnvVars(v *viper.Viper) {
	v.BindEnv("board.platform", "FLASHBUILD_BOARD_PLATFORM", "PLATFORM")
	v.BindEnv("board.target", "FLASHBUILD_BOARD_TARGET", "TARGET")

	v.BindEnv("toolchain.prefix", "FLASHBUILD_TOOLCHAIN_PREFIX", "TOOLCHAIN")
	v.BindEnv("toolchain.cargo", "FLASHBUILD_TOOLCHAIN_CARGO", "CARGO")
	v.BindEnv("toolchain.rustup", "FLASHBUILD_TOOLCHAIN_RUSTUP", "RUSTUP")
	v.BindEnv("toolchain.objcopy", "FLASHBUILD_TOOLCHAIN_OBJCOPY", "OBJCOPY")
	v.BindEnv("toolchain.objdump", "FLASHBUILD_TOOLCHAIN_OBJDUMP", "OBJDUMP")
	v.BindEnv("toolchain.size", "FLASHBUILD_TOOLCHAIN_SIZE", "SIZE")

	v.BindEnv("log.verbosity", "FLASHBUILD_LOG_VERBOSITY", "V")
}
