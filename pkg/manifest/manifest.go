// Package manifest defines the JSON-serializable manifest tree the tree
// walker assembles on unpack and consumes on pack.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/goopsie/catpack/pkg/texture"
)

// Node is a tagged manifest tree node. Exactly the fields relevant to Type
// are populated; the others are left zero and omitted from JSON.
type Node struct {
	Type string `json:"type"`

	// Container fields.
	Version    uint32  `json:"version,omitempty"`
	Format     uint32  `json:"format,omitempty"`
	HeaderSize uint32  `json:"header_size,omitempty"`
	Alignment  uint32  `json:"alignment,omitempty"`
	Children   []*Node `json:"children,omitempty"`

	// Textures fields.
	Textures []Texture `json:"textures,omitempty"`

	// Files fields.
	Files []string `json:"files,omitempty"`

	// File fields.
	File string `json:"file,omitempty"`
}

const (
	TypeContainer = "container"
	TypeTextures  = "textures"
	TypeFiles     = "files"
	TypeFile      = "file"
)

// Texture carries a decoded atlas entry's name, stable format descriptor,
// and its on-disk PNG path relative to the manifest root.
type Texture struct {
	Name     string         `json:"name"`
	Format   texture.Format `json:"format"`
	Filename string         `json:"filename"`
}

// NewContainer builds a Container node.
func NewContainer(version, format, headerSize, alignment uint32, children []*Node) *Node {
	return &Node{
		Type: TypeContainer, Version: version, Format: format,
		HeaderSize: headerSize, Alignment: alignment, Children: children,
	}
}

// NewTextures builds a Textures node.
func NewTextures(textures []Texture) *Node {
	return &Node{Type: TypeTextures, Textures: textures}
}

// NewFiles builds a Files node.
func NewFiles(files []string) *Node {
	return &Node{Type: TypeFiles, Files: files}
}

// NewFile builds a single-payload File node.
func NewFile(name string) *Node {
	return &Node{Type: TypeFile, File: name}
}

// Validate checks that Type is recognised and, for Container nodes,
// recurses into children — surfacing a ManifestError-class failure early
// during pack rather than partway through emission.
func (n *Node) Validate() error {
	switch n.Type {
	case TypeContainer:
		for i, c := range n.Children {
			if c == nil {
				return fmt.Errorf("manifest: container child %d is nil", i)
			}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("manifest: child %d: %w", i, err)
			}
		}
	case TypeTextures, TypeFiles, TypeFile:
		// leaf variants, nothing further to check structurally
	default:
		return fmt.Errorf("manifest: unknown node type %q", n.Type)
	}
	return nil
}

// Load reads and parses a manifest JSON file.
func Load(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	if err := root.Validate(); err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}
	return &root, nil
}

// Save writes the manifest tree as pretty-printed JSON, matching the
// indent style the original debug dump used.
func Save(path string, root *Node) error {
	data, err := json.MarshalIndent(root, "", " ")
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return nil
}
