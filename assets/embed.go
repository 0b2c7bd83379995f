// apps/go-server/assets/embed.go
//
// Embedded default catalogs.

// Package assets embeds the default tank and map catalogs.
package assets

import (
	"embed"
	"fmt"
)

//go:embed tanks.yaml maps.yaml
var FS embed.FS

// Catalog returns the raw YAML for the named default catalog ("tanks" or "maps").
func Catalog(name string) ([]byte, error) {
	b, err := FS.ReadFile(name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("embedded catalog %s: %w", name, err)
	}
	return b, nil
}
