package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
	yaml "gopkg.in/yaml.v3"

	"github.com/solatis/tagrules/internal/rules"
	"github.com/solatis/tagrules/internal/types"
)

/*
 * Write API for config directories.
 *
 *   WriteRule   validate, refuse exact duplicates, append "- <expr>"
 *   WriteTag    extend an existing tag line or append a new one
 *   WriteObject add an object or fill in attributes it lacks
 *
 * Each call rewrites the whole file through a temp file and rename, so a
 * concurrent reader (or the reload watcher) never sees a torn file.
 */

func withExt(name, ext string) string {
	if strings.HasSuffix(name, ext) {
		return name
	}
	return name + ext
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// writeFileAtomic replaces path with data. The temp file is fsynced
// before the rename, and an existing file keeps its permissions.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := renameio.WriteFile(path, data, 0o644, renameio.WithExistingPermissions()); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// WriteRule validates rule against vocab and appends it to dir/file.
// The ".rules" extension is added when missing; a leading '-' on rule is
// optional. An identical rule already in the file fails with ErrDuplicateRule.
func WriteRule(dir, file, rule string, vocab *types.Vocabulary) (string, error) {
	path := filepath.Join(dir, withExt(file, ".rules"))
	expr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rule), "-"))

	if _, err := rules.Parse(expr, vocab); err != nil {
		return path, err
	}

	lines, err := readLines(path)
	if err != nil {
		return path, fmt.Errorf("read rules: %w", err)
	}
	for _, line := range lines {
		if isBlankOrComment(line) {
			continue
		}
		existing := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if existing == expr {
			return path, fmt.Errorf("%s: %w: %s", path, types.ErrDuplicateRule, expr)
		}
	}

	lines = append(lines, "- "+expr)
	return path, writeFileAtomic(path, []byte(strings.Join(lines, "\n")+"\n"))
}

// WriteTag adds values to tag name in dir/file. An existing tag line gains
// the values it lacks; otherwise a new "- name: v1, v2" line is appended.
func WriteTag(dir, file, name string, values []string) (string, error) {
	path := filepath.Join(dir, withExt(file, ".tags"))
	want, err := ParseTagLine("- " + name + ": " + strings.Join(values, ", "))
	if err != nil {
		return path, err
	}

	lines, err := readLines(path)
	if err != nil {
		return path, fmt.Errorf("read tags: %w", err)
	}

	found := false
	for i, line := range lines {
		if isBlankOrComment(line) {
			continue
		}
		have, err := ParseTagLine(line)
		if err != nil {
			return path, fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		if have.Name != want.Name {
			continue
		}
		found = true
		var missing []string
		for _, v := range want.Values {
			if !containsString(have.Values, v) && !containsString(missing, v) {
				missing = append(missing, v)
			}
		}
		if len(missing) == 0 {
			return path, nil
		}
		lines[i] = strings.TrimRight(line, " \t,") + ", " + strings.Join(missing, ", ")
		break
	}
	if !found {
		lines = append(lines, "- "+want.Name+": "+strings.Join(want.Values, ", "))
	}
	return path, writeFileAtomic(path, []byte(strings.Join(lines, "\n")+"\n"))
}

// WriteObject records an object of type typ in dir/file. When an object
// with the same type and id exists, only attributes it lacks are added.
func WriteObject(dir, file, typ, id string, attrs map[string][]string) (string, error) {
	path := filepath.Join(dir, file)
	if filepath.Ext(file) == "" {
		path += ".yaml"
	}
	if typ == "" || id == "" {
		return path, fmt.Errorf("%w: object needs a type and an id", types.ErrObjectSyntax)
	}

	doc, err := readDocument(path)
	if err != nil {
		return path, err
	}
	root := doc.Content[0]

	list := mappingValue(root, typ)
	if list == nil {
		list = &yaml.Node{Kind: yaml.SequenceNode}
		root.Content = append(root.Content, scalarNode(typ), list)
	} else if list.Kind != yaml.SequenceNode {
		return path, fmt.Errorf("%s:%d: %w: type %q must hold a list of objects", path, list.Line, types.ErrObjectSyntax, typ)
	}

	var obj *yaml.Node
	for _, item := range list.Content {
		if v := mappingValue(item, "id"); v != nil && v.Value == id {
			obj = item
			break
		}
	}
	if obj == nil {
		obj = &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{scalarNode("id"), scalarNode(id)}}
		list.Content = append(list.Content, obj)
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tag := types.Normalize(name)
		if tag == "" || tag == "id" || mappingValue(obj, tag) != nil {
			continue
		}
		obj.Content = append(obj.Content, scalarNode(tag), valuesNode(attrs[name]))
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return path, fmt.Errorf("encode objects: %w", err)
	}
	if err := enc.Close(); err != nil {
		return path, fmt.Errorf("encode objects: %w", err)
	}
	return path, writeFileAtomic(path, buf.Bytes())
}

func readDocument(path string) (*yaml.Node, error) {
	fresh := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fresh, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read objects: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, types.ErrObjectSyntax, err)
	}
	if len(doc.Content) == 0 {
		return fresh, nil
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: %w: top level must map type labels to object lists", path, types.ErrObjectSyntax)
	}
	return &doc, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func valuesNode(values []string) *yaml.Node {
	if len(values) == 1 {
		return scalarNode(types.Normalize(values[0]))
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range values {
		seq.Content = append(seq.Content, scalarNode(types.Normalize(v)))
	}
	return seq
}

func containsString(values []string, v string) bool {
	for _, have := range values {
		if have == v {
			return true
		}
	}
	return false
}
