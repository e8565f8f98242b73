// Package structure loads the two YAML documents fed into the judge
// prompt: the rules table of contents and the team roster catalogue.
// They are data, not code; both are loaded once at construction.
package structure

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type teamEntry struct {
	Name string         `yaml:"name"`
	Body map[string]any `yaml:",inline"`
}

type teamsFile struct {
	Teams []teamEntry `yaml:"teams"`
}

// Docs holds both structure documents, parsed once.
type Docs struct {
	rulesOutline string
	teams        []teamEntry
}

// Load reads both YAML files. Missing files yield empty outlines: the
// judge prompt degrades gracefully without them.
func Load(rulesPath, teamsPath string) (*Docs, error) {
	docs := &Docs{}

	if rulesPath != "" {
		data, err := os.ReadFile(rulesPath)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read rules structure: %w", err)
		default:
			var parsed any
			if err := yaml.Unmarshal(data, &parsed); err != nil {
				return nil, fmt.Errorf("parse rules structure: %w", err)
			}
			docs.rulesOutline = strings.TrimSpace(string(data))
		}
	}

	if teamsPath != "" {
		data, err := os.ReadFile(teamsPath)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read teams structure: %w", err)
		default:
			var parsed teamsFile
			if err := yaml.Unmarshal(data, &parsed); err != nil {
				return nil, fmt.Errorf("parse teams structure: %w", err)
			}
			docs.teams = parsed.Teams
		}
	}

	return docs, nil
}

// RulesOutline returns the rules table of contents verbatim. A nil
// receiver reads as an empty corpus.
func (d *Docs) RulesOutline() string {
	if d == nil {
		return ""
	}
	return d.rulesOutline
}

// TeamsOutline returns the roster catalogue filtered to teams whose name
// appears in the query (case-insensitive substring scan). Filtering cuts
// the judge prompt down to the teams the question is actually about; a
// query naming no team gets an empty outline.
func (d *Docs) TeamsOutline(query string) string {
	if d == nil || len(d.teams) == 0 {
		return ""
	}
	lowered := strings.ToLower(query)

	var matched []teamEntry
	for _, team := range d.teams {
		if team.Name == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(team.Name)) {
			matched = append(matched, team)
		}
	}
	if len(matched) == 0 {
		return ""
	}

	out, err := yaml.Marshal(teamsFile{Teams: matched})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
