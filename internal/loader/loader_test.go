package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solatis/tagrules/internal/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v, want nil", err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v, want nil", err)
	}
	return string(data)
}

func TestParseTagLine(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantName   string
		wantValues []string
		wantErr    string
	}{
		{name: "simple", line: "- colour: red, green, blue", wantName: "colour", wantValues: []string{"red", "green", "blue"}},
		{name: "case folded", line: "  -Shape:Circle,SQUARE", wantName: "shape", wantValues: []string{"circle", "square"}},
		{name: "trailing comma", line: "- size: small,", wantName: "size", wantValues: []string{"small"}},
		{name: "missing separator", line: "- colour red", wantErr: "':' separator"},
		{name: "two separators", line: "- colour: red: blue", wantErr: "exactly one ':'"},
		{name: "missing dash", line: "colour: red", wantErr: "begin with '-'"},
		{name: "space in name", line: "- fav colour: red", wantErr: "name cannot contain spaces"},
		{name: "space in value", line: "- colour: dark red", wantErr: "cannot contain spaces"},
		{name: "no values", line: "- colour:", wantErr: "no values"},
		{name: "empty name", line: "- : red", wantErr: "name is empty"},
		{name: "bad character", line: "- colour: re$d", wantErr: "not allowed in rules"},
		{name: "problems reported together", line: "colour x: a b", wantErr: "begin with '-'; tag name cannot contain spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTagLine(tt.line)
			if tt.wantErr != "" {
				if !errors.Is(err, types.ErrTagSyntax) {
					t.Fatalf("ParseTagLine(%q) error = %v, want ErrTagSyntax", tt.line, err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("ParseTagLine(%q) error = %q, want substring %q", tt.line, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTagLine(%q) error = %v, want nil", tt.line, err)
			}
			if got.Name != tt.wantName || strings.Join(got.Values, ",") != strings.Join(tt.wantValues, ",") {
				t.Errorf("ParseTagLine(%q) = %+v, want %s %v", tt.line, got, tt.wantName, tt.wantValues)
			}
		})
	}
}

func TestLoadTagFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.tags", "# colours\n- colour: red, green\n\n- shape: circle\n")
	writeFile(t, dir, "b.tags", "- colour: blue, red\n")
	writeFile(t, dir, "ignored.txt", "not a tag file")

	vocab, files, err := LoadTagFiles(dir, "*.tags")
	if err != nil {
		t.Fatalf("LoadTagFiles() error = %v, want nil", err)
	}
	if len(files) != 2 {
		t.Errorf("LoadTagFiles() files = %v, want 2", files)
	}
	if got := strings.Join(vocab.Values("colour"), ","); got != "blue,green,red" {
		t.Errorf("Values(colour) = %s, want blue,green,red", got)
	}
	if !vocab.HasValue("shape", "circle") {
		t.Errorf("HasValue(shape, circle) = false, want true")
	}
}

func TestLoadTagFiles_ErrorNamesLine(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.tags", "- colour: red\n\n- shape circle\n")

	_, _, err := LoadTagFiles(dir, "*.tags")
	if !errors.Is(err, types.ErrTagSyntax) {
		t.Fatalf("LoadTagFiles() error = %v, want ErrTagSyntax", err)
	}
	if !strings.HasPrefix(err.Error(), path+":3:") {
		t.Errorf("LoadTagFiles() error = %q, want prefix %q", err, path+":3:")
	}
}

func TestReadRules(t *testing.T) {
	src := "# header\n- colour=red\n\n  -  shape!circle & colour=blue  \n"
	lines, err := ReadRules(strings.NewReader(src), "x.rules", 5)
	if err != nil {
		t.Fatalf("ReadRules() error = %v, want nil", err)
	}
	if len(lines) != 2 {
		t.Fatalf("len(ReadRules()) = %d, want 2", len(lines))
	}
	want := []types.RuleLine{
		{ID: "R5", File: "x.rules", Line: 2, Source: "colour=red"},
		{ID: "R6", File: "x.rules", Line: 4, Source: "shape!circle & colour=blue"},
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("ReadRules()[%d] = %+v, want %+v", i, lines[i], want[i])
		}
	}
}

func TestReadRules_MissingDash(t *testing.T) {
	_, err := ReadRules(strings.NewReader("- colour=red\ncolour=blue\n"), "x.rules", 1)
	if !errors.Is(err, types.ErrSyntax) {
		t.Fatalf("ReadRules() error = %v, want ErrSyntax", err)
	}
	var re *types.RuleError
	if !errors.As(err, &re) || re.Line != 2 || re.File != "x.rules" {
		t.Errorf("ReadRules() error = %v, want x.rules line 2", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tags", "- colour: red, blue\n")
	writeFile(t, dir, "a.rules", "- colour=red\n")
	writeFile(t, dir, "b.rules", "- colour=blue\n- colour!red\n")

	src, err := Load(dir, "*.tags", "*.rules")
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if len(src.Rules) != 3 {
		t.Fatalf("len(Rules) = %d, want 3", len(src.Rules))
	}
	ids := []string{src.Rules[0].ID, src.Rules[1].ID, src.Rules[2].ID}
	if strings.Join(ids, ",") != "R1,R2,R3" {
		t.Errorf("rule ids = %v, want R1,R2,R3", ids)
	}
	if filepath.Base(src.Rules[2].File) != "b.rules" || src.Rules[2].Line != 2 {
		t.Errorf("Rules[2] = %+v, want b.rules line 2", src.Rules[2])
	}
}

func TestReadObjects(t *testing.T) {
	src := `
shapes:
  - id: s1
    Colour: Red
    shape: [circle, square, circle]
  - id: s2
    colour: blue
vehicles:
  - id: v1
    wheels: 4
`
	objs, err := ReadObjects(strings.NewReader(src), "objs.yaml")
	if err != nil {
		t.Fatalf("ReadObjects() error = %v, want nil", err)
	}
	if len(objs) != 3 {
		t.Fatalf("len(ReadObjects()) = %d, want 3", len(objs))
	}
	if objs[0].ID != "s1" || objs[0].Type != "shapes" || objs[2].Type != "vehicles" {
		t.Errorf("ReadObjects() order = %s/%s, %s/%s", objs[0].Type, objs[0].ID, objs[2].Type, objs[2].ID)
	}
	if got := strings.Join(objs[0].Attributes["shape"], ","); got != "circle,square" {
		t.Errorf("s1 shape = %s, want circle,square", got)
	}
	if got := objs[0].Attributes["colour"]; len(got) != 1 || got[0] != "red" {
		t.Errorf("s1 colour = %v, want [red]", got)
	}
	if got := objs[2].Attributes["wheels"]; len(got) != 1 || got[0] != "4" {
		t.Errorf("v1 wheels = %v, want [4]", got)
	}
}

func TestReadObjects_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"top level list", "- id: x\n", "top level"},
		{"type not list", "shapes: {id: s1}\n", "list of objects"},
		{"object not mapping", "shapes: [s1]\n", "must be a mapping"},
		{"missing id", "shapes:\n  - colour: red\n", "has no id"},
		{"nested value", "shapes:\n  - id: s1\n    colour: {a: b}\n", "scalar or a list"},
		{"nested list item", "shapes:\n  - id: s1\n    colour: [[red]]\n", "must be scalars"},
		{"malformed yaml", "shapes: [\n", "object definition error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadObjects(strings.NewReader(tt.src), "objs.yaml")
			if !errors.Is(err, types.ErrObjectSyntax) {
				t.Fatalf("ReadObjects() error = %v, want ErrObjectSyntax", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ReadObjects() error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestReadObjects_Empty(t *testing.T) {
	objs, err := ReadObjects(strings.NewReader(""), "empty.yaml")
	if err != nil || len(objs) != 0 {
		t.Errorf("ReadObjects(empty) = %v, %v, want none, nil", objs, err)
	}
}
