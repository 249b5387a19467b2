package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/solatis/tagrules/internal/types"
)

// ReadRules reads "- <expr>" lines from r. Rule ids continue from first,
// so the first rule read is R<first>. file is recorded on every line.
func ReadRules(r io.Reader, file string, first int) ([]types.RuleLine, error) {
	var lines []types.RuleLine
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), types.MaxRuleLength*2)
	for n := 1; sc.Scan(); n++ {
		raw := sc.Text()
		if isBlankOrComment(raw) {
			continue
		}
		trimmed := strings.TrimSpace(raw)
		if !strings.HasPrefix(trimmed, "-") {
			return nil, &types.RuleError{
				Kind: types.ErrSyntax,
				File: file,
				Line: n,
				Pos:  1,
				Msg:  "rule must begin with '-'",
			}
		}
		lines = append(lines, types.RuleLine{
			ID:     types.DefaultRuleID(first + len(lines)),
			File:   file,
			Line:   n,
			Source: strings.TrimSpace(trimmed[1:]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return lines, nil
}

// LoadRuleFiles reads every file matching pattern under dir in name order.
// Rule ids are numbered across all files.
func LoadRuleFiles(dir, pattern string) ([]types.RuleLine, []string, error) {
	files, err := matchFiles(dir, pattern)
	if err != nil {
		return nil, nil, err
	}

	var all []types.RuleLine
	for _, path := range files {
		lines, err := readRuleFile(path, len(all)+1)
		if err != nil {
			return nil, nil, err
		}
		all = append(all, lines...)
	}
	return all, files, nil
}

func readRuleFile(path string, first int) ([]types.RuleLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	return ReadRules(f, path, first)
}

// Sources is everything a compile needs, read from one config directory.
type Sources struct {
	Vocabulary *types.Vocabulary
	Rules      []types.RuleLine
	TagFiles   []string
	RuleFiles  []string
}

// Load reads the tag and rule files of dir.
func Load(dir, tagsGlob, rulesGlob string) (*Sources, error) {
	vocab, tagFiles, err := LoadTagFiles(dir, tagsGlob)
	if err != nil {
		return nil, err
	}
	lines, ruleFiles, err := LoadRuleFiles(dir, rulesGlob)
	if err != nil {
		return nil, err
	}
	return &Sources{
		Vocabulary: vocab,
		Rules:      lines,
		TagFiles:   tagFiles,
		RuleFiles:  ruleFiles,
	}, nil
}

func matchFiles(dir, pattern string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(files)
	return files, nil
}
