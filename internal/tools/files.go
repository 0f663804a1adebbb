package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ReadFile returns a file's contents.
func ReadFile(_ context.Context, args Args) (string, error) {
	path, err := args.RequireString("path")
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile writes content to a file, creating parent directories.
func WriteFile(_ context.Context, args Args) (string, error) {
	path, err := args.RequireString("path")
	if err != nil {
		return "", err
	}
	content := args.String("content", "")
	path = expandHome(path)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return fmt.Sprintf("Written %d bytes to %s", len(content), path), nil
}

// ListDirectory lists a directory with file sizes, sorted by name.
func ListDirectory(_ context.Context, args Args) (string, error) {
	path := expandHome(args.String("path", "."))

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			lines = append(lines, "[DIR]  "+entry.Name())
			continue
		}
		line := "[FILE] " + entry.Name()
		if info, err := entry.Info(); err == nil && info.Mode().IsRegular() {
			line += fmt.Sprintf(" (%d bytes)", info.Size())
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return "(empty directory)", nil
	}
	return strings.Join(lines, "\n"), nil
}

// SearchFiles matches a glob under a base directory. "**" spans any number
// of directories, including none.
func SearchFiles(_ context.Context, args Args) (string, error) {
	pattern, err := args.RequireString("pattern")
	if err != nil {
		return "", err
	}
	base := expandHome(args.String("path", "."))

	var matches []string
	if !strings.Contains(pattern, "**") {
		matches, err = filepath.Glob(filepath.Join(base, pattern))
		if err != nil {
			return "", err
		}
	} else {
		re, err := globToRegexp(filepath.ToSlash(pattern))
		if err != nil {
			return "", err
		}
		err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if d != nil && d.IsDir() && p != base {
					return fs.SkipDir
				}
				return nil
			}
			if p == base {
				return nil
			}
			rel, err := filepath.Rel(base, p)
			if err != nil {
				return nil
			}
			if re.MatchString(filepath.ToSlash(rel)) {
				matches = append(matches, p)
			}
			return nil
		})
		if err != nil {
			return "", err
		}
	}

	if len(matches) == 0 {
		return "(no matches)", nil
	}
	sort.Strings(matches)
	return strings.Join(matches, "\n"), nil
}

// globToRegexp translates a slash-separated glob with "**" support.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				i++
				if i+1 < len(pattern) && pattern[i+1] == '/' {
					i++
					sb.WriteString("(?:.*/)?")
				} else {
					sb.WriteString(".*")
				}
			} else {
				sb.WriteString("[^/]*")
			}
		case '?':
			sb.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				sb.WriteString(regexp.QuoteMeta("["))
				continue
			}
			class := pattern[i+1 : i+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			sb.WriteString("[" + class + "]")
			i += end
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
