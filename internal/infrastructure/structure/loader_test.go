package structure

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const teamsYAML = `teams:
  - name: Kommando
    archetype: infiltration
    operatives: 10
  - name: Pathfinder
    archetype: recon
    operatives: 13
`

func TestLoadAndFilterTeams(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", "sections:\n  - Movement Phase\n  - Shooting Phase\n")
	teams := writeFile(t, dir, "teams.yaml", teamsYAML)

	docs, err := Load(rules, teams)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.Contains(docs.RulesOutline(), "Movement Phase") {
		t.Fatalf("rules outline lost content: %q", docs.RulesOutline())
	}

	outline := docs.TeamsOutline("Can a KOMMANDO operative charge after falling back?")
	if !strings.Contains(outline, "Kommando") {
		t.Fatalf("expected Kommando in filtered outline: %q", outline)
	}
	if strings.Contains(outline, "Pathfinder") {
		t.Fatalf("unmentioned team leaked into outline: %q", outline)
	}
}

func TestTeamsOutlineEmptyWhenNoTeamNamed(t *testing.T) {
	dir := t.TempDir()
	teams := writeFile(t, dir, "teams.yaml", teamsYAML)
	docs, err := Load("", teams)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := docs.TeamsOutline("How does the movement phase work?"); got != "" {
		t.Fatalf("expected empty outline, got %q", got)
	}
}

func TestLoadToleratesMissingFiles(t *testing.T) {
	docs, err := Load("/nonexistent/rules.yaml", "/nonexistent/teams.yaml")
	if err != nil {
		t.Fatalf("missing files should not error, got %v", err)
	}
	if docs.RulesOutline() != "" || docs.TeamsOutline("kommando") != "" {
		t.Fatalf("expected empty outlines")
	}
}

func TestNilDocsOutlinesAreEmpty(t *testing.T) {
	var docs *Docs
	if docs.RulesOutline() != "" {
		t.Fatalf("nil docs must yield empty rules outline")
	}
	if docs.TeamsOutline("kommando") != "" {
		t.Fatalf("nil docs must yield empty teams outline")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "teams.yaml", "teams: [unclosed")
	if _, err := Load("", bad); err == nil {
		t.Fatalf("expected parse error")
	}
}
