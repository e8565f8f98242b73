package chunking

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the recognized subset of the corpus YAML header.
type FrontMatter struct {
	Source         string `yaml:"source"`
	LastUpdateDate string `yaml:"last_update_date"`
	DocumentType   string `yaml:"document_type"`
	Section        string `yaml:"section"`
	Summary        string `yaml:"summary"`
}

func (fm FrontMatter) recognized() bool {
	return fm.Source != "" || fm.LastUpdateDate != "" || fm.DocumentType != "" || fm.Section != "" || fm.Summary != ""
}

// StripFrontMatter removes a leading YAML front-matter block when it is
// syntactically valid and carries at least one recognized key. Anything
// else is preserved verbatim.
func StripFrontMatter(content string) (FrontMatter, string) {
	var fm FrontMatter

	if !strings.HasPrefix(content, "---") {
		return fm, content
	}
	firstLineEnd := strings.IndexByte(content, '\n')
	if firstLineEnd < 0 || strings.TrimSpace(content[:firstLineEnd]) != "---" {
		return fm, content
	}

	rest := content[firstLineEnd+1:]
	closeIdx := findClosingDelimiter(rest)
	if closeIdx < 0 {
		return fm, content
	}

	block := rest[:closeIdx]
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return FrontMatter{}, content
	}
	if !fm.recognized() {
		return FrontMatter{}, content
	}

	body := rest[closeIdx:]
	if lineEnd := strings.IndexByte(body, '\n'); lineEnd >= 0 {
		body = body[lineEnd+1:]
	} else {
		body = ""
	}
	return fm, body
}

func findClosingDelimiter(s string) int {
	offset := 0
	for {
		lineEnd := strings.IndexByte(s[offset:], '\n')
		line := ""
		if lineEnd < 0 {
			line = s[offset:]
		} else {
			line = s[offset : offset+lineEnd]
		}
		if strings.TrimSpace(line) == "---" {
			return offset
		}
		if lineEnd < 0 {
			return -1
		}
		offset += lineEnd + 1
	}
}
