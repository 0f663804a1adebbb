// Package skills loads markdown skill files and picks the one that fits a
// request.
//
// A skill file starts with YAML frontmatter:
//
//	---
//	name: sysadmin
//	description: Linux administration and troubleshooting
//	---
//	Instructions appended to the system prompt when the skill is active.
package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/normanking/voxaos/internal/llm"
)

// Skill is a named block of extra instructions.
type Skill struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Body        string `yaml:"-"`
	Path        string `yaml:"-"`
}

const delimiter = "---"

// Load reads every *.md file in dir in filename order. Files without
// frontmatter are skipped. A missing directory yields no skills.
func Load(dir string) ([]Skill, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("glob skills: %w", err)
	}
	sort.Strings(paths)

	var skills []Skill
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read skill %s: %w", path, err)
		}
		skill, ok, err := Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse skill %s: %w", path, err)
		}
		if !ok {
			log.Debug().Str("component", "skills").Str("path", path).Msg("skipping file without frontmatter")
			continue
		}
		skill.Path = path
		skills = append(skills, skill)
	}
	return skills, nil
}

// Parse splits a skill document into frontmatter and body. ok is false when
// the document has no frontmatter.
func Parse(text string) (skill Skill, ok bool, err error) {
	if !strings.HasPrefix(text, delimiter) {
		return Skill{}, false, nil
	}
	end := strings.Index(text[len(delimiter):], delimiter)
	if end < 0 {
		return Skill{}, false, fmt.Errorf("unterminated frontmatter")
	}
	end += len(delimiter)

	if err := yaml.Unmarshal([]byte(text[len(delimiter):end]), &skill); err != nil {
		return Skill{}, false, fmt.Errorf("frontmatter: %w", err)
	}
	if skill.Name == "" {
		return Skill{}, false, fmt.Errorf("frontmatter: missing name")
	}
	skill.Body = strings.TrimSpace(text[end+len(delimiter):])
	return skill, true, nil
}

// Chatter is the slice of llm.Client used for selection.
type Chatter interface {
	ChatSimple(ctx context.Context, messages []llm.Message) (string, error)
}

const selectionPrompt = `Given this user request, which skill (if any) should be activated?

Available skills:
%s

User request: "%s"

Respond with ONLY the skill name, or "none" if no skill applies. No explanation.`

// Select asks the model which skill applies to input. Only names and
// descriptions are sent. A nil skill means none applies.
func Select(ctx context.Context, input string, skills []Skill, client Chatter) (*Skill, error) {
	if len(skills) == 0 {
		return nil, nil
	}

	lines := make([]string, len(skills))
	for i, s := range skills {
		lines[i] = fmt.Sprintf("- %s: %s", s.Name, s.Description)
	}
	prompt := fmt.Sprintf(selectionPrompt, strings.Join(lines, "\n"), input)

	reply, err := client.ChatSimple(ctx, []llm.Message{llm.UserMessage(prompt)})
	if err != nil {
		return nil, fmt.Errorf("skill selection: %w", err)
	}

	name := strings.Trim(strings.ToLower(strings.TrimSpace(reply)), `"'`)
	if name == "none" {
		return nil, nil
	}
	for i := range skills {
		if strings.ToLower(skills[i].Name) == name {
			return &skills[i], nil
		}
	}
	return nil, nil
}
