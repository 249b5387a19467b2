package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solatis/tagrules/internal/types"
)

func writeVocabulary() *types.Vocabulary {
	v := types.NewVocabulary()
	v.Add("colour", "red", "blue")
	v.Add("size", "large", "small")
	return v
}

func TestWriteRule(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "config")

	path, err := WriteRule(dir, "my_rules", "-colour = red & size = large", writeVocabulary())
	if err != nil {
		t.Fatalf("WriteRule() error = %v, want nil", err)
	}
	if filepath.Base(path) != "my_rules.rules" {
		t.Errorf("WriteRule() path = %s, want my_rules.rules", path)
	}
	if _, err := WriteRule(dir, "my_rules.rules", "colour=blue", writeVocabulary()); err != nil {
		t.Fatalf("WriteRule() second error = %v, want nil", err)
	}

	want := "- colour = red & size = large\n- colour=blue\n"
	if got := readFile(t, path); got != want {
		t.Errorf("file = %q, want %q", got, want)
	}

	lines, _, err := LoadRuleFiles(dir, "*.rules")
	if err != nil || len(lines) != 2 {
		t.Fatalf("LoadRuleFiles() = %v, %v, want 2 rules", lines, err)
	}
}

func TestWriteRule_Rejects(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteRule(dir, "r", "- colour=red", writeVocabulary()); err != nil {
		t.Fatalf("WriteRule() error = %v, want nil", err)
	}

	tests := []struct {
		name string
		rule string
		want error
	}{
		{"duplicate", "colour=red", types.ErrDuplicateRule},
		{"duplicate with dash", "  - colour=red ", types.ErrDuplicateRule},
		{"syntax", "colour=red &", types.ErrSyntax},
		{"unknown tag", "shape=circle", types.ErrUnknownTag},
		{"unknown value", "colour=green", types.ErrUnknownValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := WriteRule(dir, "r", tt.rule, writeVocabulary()); !errors.Is(err, tt.want) {
				t.Errorf("WriteRule(%q) error = %v, want %v", tt.rule, err, tt.want)
			}
		})
	}

	if got := readFile(t, filepath.Join(dir, "r.rules")); got != "- colour=red\n" {
		t.Errorf("file = %q, want only the first rule", got)
	}
}

func TestWriteTag(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.tags", "# sizes and colours\n- colour: red\n- size: small\n")

	if _, err := WriteTag(dir, "main", "colour", []string{"Blue", "red", "green"}); err != nil {
		t.Fatalf("WriteTag() error = %v, want nil", err)
	}
	if _, err := WriteTag(dir, "main.tags", "shape", []string{"circle", "square"}); err != nil {
		t.Fatalf("WriteTag() new tag error = %v, want nil", err)
	}
	if _, err := WriteTag(dir, "main", "size", []string{"small"}); err != nil {
		t.Fatalf("WriteTag() no-op error = %v, want nil", err)
	}

	want := "# sizes and colours\n- colour: red, blue, green\n- size: small\n- shape: circle, square\n"
	if got := readFile(t, path); got != want {
		t.Errorf("file = %q, want %q", got, want)
	}

	vocab, _, err := LoadTagFiles(dir, "*.tags")
	if err != nil {
		t.Fatalf("LoadTagFiles() error = %v, want nil", err)
	}
	if got := strings.Join(vocab.Values("colour"), ","); got != "blue,green,red" {
		t.Errorf("Values(colour) = %s, want blue,green,red", got)
	}
}

func TestWriteTag_InvalidInput(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		tag    string
		values []string
	}{
		{"space in name", "fav colour", []string{"red"}},
		{"space in value", "colour", []string{"dark red"}},
		{"no values", "colour", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := WriteTag(dir, "t", tt.tag, tt.values); !errors.Is(err, types.ErrTagSyntax) {
				t.Errorf("WriteTag() error = %v, want ErrTagSyntax", err)
			}
		})
	}
}

func TestWriteObject(t *testing.T) {
	dir := t.TempDir()

	if _, err := WriteObject(dir, "objects", "shapes", "s1", map[string][]string{
		"colour": {"red"},
		"shape":  {"circle", "square"},
	}); err != nil {
		t.Fatalf("WriteObject() error = %v, want nil", err)
	}
	if _, err := WriteObject(dir, "objects", "shapes", "s1", map[string][]string{
		"colour": {"blue"},
		"size":   {"large"},
	}); err != nil {
		t.Fatalf("WriteObject() merge error = %v, want nil", err)
	}
	path, err := WriteObject(dir, "objects", "vehicles", "v1", map[string][]string{"colour": {"blue"}})
	if err != nil {
		t.Fatalf("WriteObject() new type error = %v, want nil", err)
	}
	if filepath.Ext(path) != ".yaml" {
		t.Errorf("WriteObject() path = %s, want .yaml", path)
	}

	objs, err := LoadObjectFile(path)
	if err != nil {
		t.Fatalf("LoadObjectFile() error = %v, want nil", err)
	}
	if len(objs) != 2 {
		t.Fatalf("len(objects) = %d, want 2", len(objs))
	}

	s1 := objs[0]
	if s1.ID != "s1" || s1.Type != "shapes" {
		t.Fatalf("objects[0] = %s/%s, want shapes/s1", s1.Type, s1.ID)
	}
	if got := strings.Join(s1.Attributes["colour"], ","); got != "red" {
		t.Errorf("s1 colour = %s, want red (existing attribute kept)", got)
	}
	if got := strings.Join(s1.Attributes["shape"], ","); got != "circle,square" {
		t.Errorf("s1 shape = %s, want circle,square", got)
	}
	if got := strings.Join(s1.Attributes["size"], ","); got != "large" {
		t.Errorf("s1 size = %s, want large (merged attribute)", got)
	}
	if objs[1].Type != "vehicles" || objs[1].ID != "v1" {
		t.Errorf("objects[1] = %s/%s, want vehicles/v1", objs[1].Type, objs[1].ID)
	}
}

func TestWriteObject_Invalid(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteObject(dir, "o.yaml", "", "x", nil); !errors.Is(err, types.ErrObjectSyntax) {
		t.Errorf("WriteObject(no type) error = %v, want ErrObjectSyntax", err)
	}
	writeFile(t, dir, "bad.yaml", "- just\n- a list\n")
	if _, err := WriteObject(dir, "bad.yaml", "shapes", "s1", nil); !errors.Is(err, types.ErrObjectSyntax) {
		t.Errorf("WriteObject(bad file) error = %v, want ErrObjectSyntax", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.rules", "- colour=red\n")
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := writeFileAtomic(path, []byte("- colour=blue\n")); err != nil {
		t.Fatalf("writeFileAtomic() error = %v, want nil", err)
	}
	if got := readFile(t, path); got != "- colour=blue\n" {
		t.Errorf("file = %q, want replaced content", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want existing 0600 kept", info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir holds %d entries, want only main.rules (temp file left behind)", len(entries))
	}

	// Missing parent directories are created
	nested := filepath.Join(dir, "a", "b", "new.tags")
	if err := writeFileAtomic(nested, []byte("- colour: red\n")); err != nil {
		t.Fatalf("writeFileAtomic(nested) error = %v, want nil", err)
	}
	if got := readFile(t, nested); got != "- colour: red\n" {
		t.Errorf("nested file = %q", got)
	}
}
