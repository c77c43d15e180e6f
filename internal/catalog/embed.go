// Package catalog loads the games.yaml catalog with an embedded fallback.
package catalog

import _ "embed"

//go:embed games.yaml
var embeddedCatalog []byte
