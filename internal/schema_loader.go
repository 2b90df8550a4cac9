package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lychee-technology/tradeschema"
)

// LoadSchemaDirectory reads extra schema definitions from *.json files in
// dir. A file holds either one definition or an array of them; a single
// definition without an id takes the file name (minus extension). Files are
// read in name order so that registration order is stable.
func LoadSchemaDirectory(dir string) ([]*tradeschema.Schema, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var schemas []*tradeschema.Schema
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
		}
		parsed, err := parseSchemaFile(data, strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
		}
		schemas = append(schemas, parsed...)
	}
	return schemas, nil
}

func parseSchemaFile(data []byte, defaultID string) ([]*tradeschema.Schema, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty schema file")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	if trimmed[0] == '[' {
		var list []*tradeschema.Schema
		if err := dec.Decode(&list); err != nil {
			return nil, err
		}
		for i, s := range list {
			if s == nil || s.ID == "" {
				return nil, fmt.Errorf("definition %d has no id", i)
			}
		}
		return list, nil
	}

	var single tradeschema.Schema
	if err := dec.Decode(&single); err != nil {
		return nil, err
	}
	if single.ID == "" {
		single.ID = defaultID
	}
	return []*tradeschema.Schema{&single}, nil
}
