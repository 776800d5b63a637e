package inventory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseFile parses an inventory from a YAML file.
func ParseFile(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	inv, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inventory %s: %w", path, err)
	}

	inv.Path = path
	return inv, nil
}

// Parse parses and validates an inventory from YAML data. Unknown fields are
// rejected so typos in device entries do not go unnoticed.
func Parse(data []byte) (*Inventory, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var inv Inventory
	if err := dec.Decode(&inv); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("inventory is empty")
		}
		return nil, fmt.Errorf("invalid inventory format: %w", err)
	}

	if err := inv.Validate(); err != nil {
		return nil, err
	}

	return &inv, nil
}
