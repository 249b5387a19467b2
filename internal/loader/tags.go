// Package loader reads and writes the files tagrules compiles from.
//
// Three formats live in a config directory:
//
//	*.tags   one tag per line:   - colour: red, green, blue
//	*.rules  one rule per line:  - colour=red & shape!circle
//	*.yaml   objects by type:    shapes: [{id: s1, colour: red}]
//
// Blank lines and lines starting with '#' are ignored in .tags and .rules
// files. Every error names the file and 1-based line it came from.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/solatis/tagrules/internal/rules"
	"github.com/solatis/tagrules/internal/types"
)

// TagLine is one parsed tag definition.
type TagLine struct {
	Name   string
	Values []string
}

func isBlankOrComment(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(trimmed, "#")
}

// ParseTagLine parses "- name: v1, v2". Names and values are normalised.
// All problems on the line are reported together, wrapping ErrTagSyntax.
func ParseTagLine(line string) (TagLine, error) {
	parts := strings.Split(line, ":")
	if len(parts) < 2 {
		return TagLine{}, fmt.Errorf("%w: tag must contain a ':' separator", types.ErrTagSyntax)
	}

	var problems []string
	if len(parts) > 2 {
		problems = append(problems, "tag must have exactly one ':' between name and values")
	}

	rawName := strings.TrimSpace(parts[0])
	if !strings.HasPrefix(rawName, "-") {
		problems = append(problems, "tag must begin with '-'")
	}
	name := strings.TrimSpace(strings.TrimPrefix(rawName, "-"))
	switch {
	case name == "":
		problems = append(problems, "tag name is empty")
	case strings.ContainsAny(name, " \t"):
		problems = append(problems, "tag name cannot contain spaces")
	case !rules.IsIdentifier(name):
		problems = append(problems, fmt.Sprintf("tag name %q contains characters not allowed in rules", name))
	}

	var values []string
	for _, raw := range strings.Split(parts[1], ",") {
		v := strings.TrimSpace(raw)
		switch {
		case v == "":
			continue
		case strings.ContainsAny(v, " \t"):
			problems = append(problems, fmt.Sprintf("tag value %q cannot contain spaces", v))
		case !rules.IsIdentifier(v):
			problems = append(problems, fmt.Sprintf("tag value %q contains characters not allowed in rules", v))
		default:
			values = append(values, types.Normalize(v))
		}
	}
	if len(values) == 0 && len(problems) == 0 {
		problems = append(problems, "tag has no values")
	}

	if len(problems) > 0 {
		return TagLine{}, fmt.Errorf("%w: %s", types.ErrTagSyntax, strings.Join(problems, "; "))
	}
	return TagLine{Name: types.Normalize(name), Values: values}, nil
}

// ReadTags parses tag definitions from r into vocab.
// file is used only in error messages.
func ReadTags(r io.Reader, file string, vocab *types.Vocabulary) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if isBlankOrComment(line) {
			continue
		}
		tag, err := ParseTagLine(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", file, n, err)
		}
		vocab.Add(tag.Name, tag.Values...)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	return nil
}

// LoadTagFiles merges every file matching pattern under dir into one
// vocabulary. Repeated tags merge their value sets.
func LoadTagFiles(dir, pattern string) (*types.Vocabulary, []string, error) {
	files, err := matchFiles(dir, pattern)
	if err != nil {
		return nil, nil, err
	}

	vocab := types.NewVocabulary()
	for _, path := range files {
		if err := readTagFile(path, vocab); err != nil {
			return nil, nil, err
		}
	}
	return vocab, files, nil
}

func readTagFile(path string, vocab *types.Vocabulary) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open tags: %w", err)
	}
	defer f.Close()
	return ReadTags(f, path, vocab)
}
