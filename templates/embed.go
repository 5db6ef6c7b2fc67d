// Package templates embeds the built-in vulnerability checks so a
// deployment works with no on-disk template directory. A templates
// directory supplied through configuration replaces this set.
//
// Usage:
//
//	fs := templates.FS
//	data, _ := fs.ReadFile("git-config-exposure.yaml")
package templates

import "embed"

// FS contains the bundled checks, one YAML file per check.
//
//go:embed *.yaml
var FS embed.FS
