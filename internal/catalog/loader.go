// apps/go-server/internal/catalog/loader.go
//
// Catalog file loading.
// Responsibilities:
//   - Embedded YAML defaults, overridden per category by CATALOG_*_FILE.
//   - .yaml/.yml, .json (document or bare array), .jsonl and .parquet inputs.
//   - Reject a file whose declared category is not the one being loaded.

package catalog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/robalobadob/tankguess/apps/go-server/assets"
	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
)

// Files optionally overrides the embedded catalogs. Empty paths keep the defaults.
type Files struct {
	Tanks string
	Maps  string
}

// fileItem is the on-disk shape of an item for every supported format.
type fileItem struct {
	ID     string   `json:"id" yaml:"id" parquet:"id"`
	Name   string   `json:"name" yaml:"name" parquet:"name"`
	Images []string `json:"images" yaml:"images" parquet:"images,list"`
}

// document is the YAML / JSON catalog file layout.
type document struct {
	Category string     `json:"category" yaml:"category"`
	Items    []fileItem `json:"items" yaml:"items"`
}

// Load builds the Set for every category from files or embedded defaults.
func Load(files Files) (*Set, error) {
	sources := []struct {
		category game.Category
		path     string
		embedded string
	}{
		{game.CategoryTank, files.Tanks, "tanks"},
		{game.CategoryMap, files.Maps, "maps"},
	}

	var cs []*Catalog
	for _, src := range sources {
		var (
			items []game.Item
			err   error
		)
		if src.path != "" {
			items, err = LoadFileFor(src.path, src.category)
		} else {
			var (
				raw []byte
				doc document
			)
			raw, err = assets.Catalog(src.embedded)
			if err == nil {
				doc, err = decodeYAML(bytes.NewReader(raw))
			}
			if err == nil {
				items, err = doc.itemsFor(src.category)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("load %s catalog: %w", src.category, err)
		}
		c, err := New(src.category, items)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("category", string(src.category)).Int("items", c.Len()).Str("source", orEmbedded(src.path)).Msg("catalog loaded")
		cs = append(cs, c)
	}
	return NewSet(cs...), nil
}

func orEmbedded(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

// LoadFile reads items from a .yaml/.yml, .json, .jsonl or .parquet file,
// dispatching on the extension.
func LoadFile(path string) ([]game.Item, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return toItems(doc.Items), nil
}

// LoadFileFor is LoadFile for a known category. A file that declares another
// category is rejected; formats without a declaration are accepted as is.
func LoadFileFor(path string, category game.Category) ([]game.Item, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return doc.itemsFor(category)
}

// itemsFor checks the declared category, if any, against category.
func (d document) itemsFor(category game.Category) ([]game.Item, error) {
	if strings.TrimSpace(d.Category) != "" {
		declared, err := game.ParseCategory(d.Category)
		if err != nil {
			return nil, err
		}
		if declared != category {
			return nil, fmt.Errorf("%w: file declares %s, loading %s", ErrCategoryMismatch, declared, category)
		}
	}
	return toItems(d.Items), nil
}

func readDocument(path string) (document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".parquet" {
		items, err := loadParquet(path)
		return document{Items: items}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return document{}, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	switch ext {
	case ".yaml", ".yml":
		return decodeYAML(f)
	case ".json":
		return decodeJSON(f)
	case ".jsonl":
		items, err := decodeJSONL(f)
		return document{Items: items}, err
	}
	return document{}, fmt.Errorf("unsupported file format: %s (supported: .yaml, .json, .jsonl, .parquet)", ext)
}

func decodeYAML(r io.Reader) (document, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return document{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return doc, nil
}

// decodeJSON accepts either the document layout or a bare item array.
func decodeJSON(r io.Reader) (document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return document{}, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []fileItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return document{}, fmt.Errorf("failed to parse JSON: %w", err)
		}
		return document{Items: items}, nil
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document{}, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return doc, nil
}

func decodeJSONL(r io.Reader) ([]fileItem, error) {
	var items []fileItem
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var it fileItem
		if err := json.Unmarshal(line, &it); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		items = append(items, it)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading catalog: %w", err)
	}
	return items, nil
}

func loadParquet(path string) ([]fileItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[fileItem](pf)
	defer reader.Close()

	var items []fileItem
	for {
		// fresh batch each time so decoded slices are never shared
		rows := make([]fileItem, 64)
		n, err := reader.Read(rows)
		items = append(items, rows[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return items, nil
}

func toItems(in []fileItem) []game.Item {
	out := make([]game.Item, len(in))
	for i, it := range in {
		out[i] = game.Item{ID: it.ID, Name: it.Name, Images: it.Images}
	}
	return out
}
