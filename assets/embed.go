// Package assets embeds files shipped with the binary.
package assets

import _ "embed"

// DefaultConfig is the default planet configuration in YAML.
//
//go:embed planet.yaml
var DefaultConfig []byte
