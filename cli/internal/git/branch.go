package git

import (
	"regexp"
	"strings"
)

var (
	underscoreRe = regexp.MustCompile(`_+`)
	hyphenRunRe  = regexp.MustCompile(`-{2,}`)
	usernameRe   = regexp.MustCompile(`^(user|username)/`)
	ticketRe     = regexp.MustCompile(`(?i)\b[a-z]{2,}-\d+\b`)
	hexHashRe    = regexp.MustCompile(`\b[0-9a-f]{8,}\b`)
	slashRunRe   = regexp.MustCompile(`/+`)
)

// branchTypes are the prefixes recognized in type/description and
// type-description branch names.
var branchTypes = []string{
	"feature", "feat", "fix", "hotfix", "bugfix", "bug",
	"docs", "chore", "refactor", "test", "style",
}

// sanitizeBranchName normalizes a branch name for prompt context: lowercase,
// underscores and separator runs collapsed to single hyphens, usernames
// stripped, ticket IDs masked (privacy), long hex hashes removed, and the
// result capped at maxLen on a segment boundary.
func sanitizeBranchName(name string, maxLen int) string {
	s := strings.ToLower(name)
	s = underscoreRe.ReplaceAllString(s, "-")
	s = hyphenRunRe.ReplaceAllString(s, "-")
	s = usernameRe.ReplaceAllString(s, "")
	s = ticketRe.ReplaceAllString(s, "ticket-xxx")
	s = hexHashRe.ReplaceAllString(s, "")
	s = slashRunRe.ReplaceAllString(s, "/")
	s = strings.Trim(s, "/-")
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
		if idx := strings.LastIndex(s, "/"); idx >= 0 {
			s = s[:idx]
		}
	}
	return s
}

// parseBranchName splits a sanitized branch name into a recognized type and a
// summary, handling both feature/add-auth and feature-add-auth shapes.
// Unrecognized shapes return the whole sanitized name as the summary.
func parseBranchName(name string, maxLen int) (typ, summary string) {
	s := sanitizeBranchName(name, maxLen)
	if s == "" {
		return "", ""
	}
	if head, rest, ok := strings.Cut(s, "/"); ok {
		for _, t := range branchTypes {
			if head == t {
				return t, rest
			}
		}
	}
	for _, t := range branchTypes {
		if strings.HasPrefix(s, t+"-") {
			return t, s[len(t)+1:]
		}
	}
	return "", s
}
