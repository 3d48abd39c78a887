// Package overrides reads and writes the host's metadata override tree: one
// directory per canonical media key holding a primary document plus one
// document per season and episode. Each document carries its own cast array.
//
// All access goes through an afero filesystem so the tree can be exercised
// in memory.
package overrides
