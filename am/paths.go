package am

import (
	"path/filepath"
)

// SourceDir is the crate directory every compile step runs in
func (c *Config) SourceDir() string {
	if c.Board.SourceDir == "" {
		return "."
	}
	return c.Board.SourceDir
}

// OutputRoot is the build-output tree; relative roots live under SourceDir
func (c *Config) OutputRoot() string {
	root := c.Output.Root
	if root == "" {
		root = DefaultOutputRoot
	}
	if filepath.IsAbs(root) {
		return root
	}
	return filepath.Join(c.SourceDir(), root)
}

// CatalogPath returns the board catalog location and whether it was set explicitly
func (c *Config) CatalogPath() (string, bool) {
	if c.Board.Catalog != "" {
		return c.Board.Catalog, true
	}
	return filepath.Join(c.SourceDir(), DefaultCatalogFile), false
}

// GitDir is the repository the version stamp is derived from
func (c *Config) GitDir() string {
	if c.Stamp.Repo != "" {
		return c.Stamp.Repo
	}
	return c.SourceDir()
}
