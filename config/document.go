// Package config loads the service config and the per-course YAML documents.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a parsed YAML file addressed by dot-separated key paths.
type Document struct {
	name string
	root *yaml.Node
}

// ParseDocument parses YAML data. An empty document is valid and resolves nothing.
func ParseDocument(name string, data []byte) (*Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	root := &node
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		root = node.Content[0]
	}
	return &Document{name: name, root: root}, nil
}

// LoadDocument reads and parses a YAML file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseDocument(filepath.Base(path), data)
}

// Name returns the file name the document was loaded from.
func (d *Document) Name() string {
	return d.name
}

// Lookup resolves path left to right. A missing segment, a null value or a
// non-mapping intermediate node makes the whole path absent.
func (d *Document) Lookup(path string) (*yaml.Node, bool) {
	node := resolveAlias(d.root)
	for _, key := range strings.Split(path, ".") {
		if node == nil || node.Kind != yaml.MappingNode {
			return nil, false
		}
		node = resolveAlias(mappingValue(node, key))
	}
	if node == nil || node.Kind == 0 || node.Tag == "!!null" {
		return nil, false
	}
	return node, true
}

// Value decodes the node at path into a generic Go value.
func (d *Document) Value(path string) (any, bool) {
	var out any
	ok, err := d.Decode(path, &out)
	if err != nil || !ok {
		return nil, false
	}
	return out, true
}

// Decode decodes the node at path into out. It reports false when the path is absent.
func (d *Document) Decode(path string, out any) (bool, error) {
	node, ok := d.Lookup(path)
	if !ok {
		return false, nil
	}
	if err := node.Decode(out); err != nil {
		return true, fmt.Errorf("%s: key %q: %w", d.name, path, err)
	}
	return true, nil
}

func (d *Document) String(path string) (string, bool) {
	var s string
	ok, err := d.Decode(path, &s)
	return s, ok && err == nil
}

func (d *Document) Int(path string) (int, bool) {
	var n int
	ok, err := d.Decode(path, &n)
	return n, ok && err == nil
}

func (d *Document) Strings(path string) ([]string, bool) {
	var list []string
	ok, err := d.Decode(path, &list)
	return list, ok && err == nil
}

// Keys returns the keys of the mapping at path in document order.
func (d *Document) Keys(path string) []string {
	node, ok := d.Lookup(path)
	if !ok || node.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}
