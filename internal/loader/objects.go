package loader

import (
	"errors"
	"fmt"
	"io"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/solatis/tagrules/internal/types"
)

/*
 * Object documents.
 *
 *   shapes:
 *     - id: s1
 *       colour: red
 *       shape: [circle, square]
 *   vehicles:
 *     - id: v1
 *       colour: blue
 *
 * Top level maps a type label to a sequence of objects. Each object needs
 * a scalar id; every other key is a tag whose value is a scalar or a
 * sequence of scalars. Documents are decoded through yaml.Node so that
 * objects come back in file order and errors carry the YAML line.
 */

// ReadObjects decodes every YAML document in r. file is used in errors.
func ReadObjects(r io.Reader, file string) ([]types.ObjectRecord, error) {
	dec := yaml.NewDecoder(r)
	var out []types.ObjectRecord
	for {
		var doc yaml.Node
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%s: %w: %v", file, types.ErrObjectSyntax, err)
		}
		objs, err := decodeDocument(&doc)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", file, err)
		}
		out = append(out, objs...)
	}
	return out, nil
}

// LoadObjectFile reads the objects of one YAML file.
func LoadObjectFile(path string) ([]types.ObjectRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open objects: %w", err)
	}
	defer f.Close()
	return ReadObjects(f, path)
}

func objectError(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%d: %w: %s", n.Line, types.ErrObjectSyntax, fmt.Sprintf(format, args...))
}

func decodeDocument(doc *yaml.Node) ([]types.ObjectRecord, error) {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return nil, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, objectError(root, "top level must map type labels to object lists")
	}

	var out []types.ObjectRecord
	for i := 0; i+1 < len(root.Content); i += 2 {
		label, list := root.Content[i], root.Content[i+1]
		if label.Kind != yaml.ScalarNode || label.Value == "" {
			return nil, objectError(label, "type label must be a non-empty string")
		}
		if list.Kind != yaml.SequenceNode {
			return nil, objectError(list, "type %q must hold a list of objects", label.Value)
		}
		for _, item := range list.Content {
			obj, err := decodeObject(label.Value, item)
			if err != nil {
				return nil, err
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

func decodeObject(typ string, n *yaml.Node) (types.ObjectRecord, error) {
	if n.Kind != yaml.MappingNode {
		return types.ObjectRecord{}, objectError(n, "object in %q must be a mapping", typ)
	}

	obj := types.ObjectRecord{Type: typ, Attributes: make(map[string][]string)}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.Kind != yaml.ScalarNode || key.Value == "" {
			return types.ObjectRecord{}, objectError(key, "attribute name must be a non-empty string")
		}
		if key.Value == "id" {
			if val.Kind != yaml.ScalarNode || val.Value == "" {
				return types.ObjectRecord{}, objectError(val, "object id must be a non-empty scalar")
			}
			obj.ID = val.Value
			continue
		}

		values, err := scalarValues(val)
		if err != nil {
			return types.ObjectRecord{}, objectError(val, "attribute %q: %v", key.Value, err)
		}
		if len(values) > types.MaxAttributeValues {
			return types.ObjectRecord{}, objectError(val, "attribute %q has %d values, limit is %d", key.Value, len(values), types.MaxAttributeValues)
		}
		obj.Attributes[key.Value] = append(obj.Attributes[key.Value], values...)
	}
	if obj.ID == "" {
		return types.ObjectRecord{}, objectError(n, "object in %q has no id", typ)
	}
	return obj.Normalize(), nil
}

func scalarValues(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		values := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, errors.New("list items must be scalars")
			}
			values = append(values, item.Value)
		}
		return values, nil
	default:
		return nil, errors.New("value must be a scalar or a list of scalars")
	}
}
