// Package validate checks generated commit messages against the basic rules
// (non-empty, within the length cap) and the format-specific shape.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"gmuse/cli/internal/config"
)

// FailureKind classifies why a message was rejected.
type FailureKind string

const (
	FailEmpty          FailureKind = "empty"
	FailTooLong        FailureKind = "too_long"
	FailFormatMismatch FailureKind = "format_mismatch"
)

// Outcome is the result of validating one message. When Passed is false, Kind
// names the first rule that failed and Reason is the user-facing explanation.
// ActualLength and Limit are set for too_long failures.
type Outcome struct {
	Passed       bool
	Kind         FailureKind
	Reason       string
	ActualLength int
	Limit        int
}

var (
	conventionalRe = regexp.MustCompile(`^(feat|fix|docs|style|refactor|test|chore)(\([^)]+\))?: .+`)
	gitmojiRe      = regexp.MustCompile(`^[\x{1F300}-\x{1F9FF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}] `)
)

// Message validates msg against the basic rules and format. Rules are checked
// in a fixed order (empty, length, format shape) and the first failure wins.
// Length is counted in code points over the untrimmed message.
func Message(msg string, format config.Format, maxLength int) Outcome {
	if strings.TrimSpace(msg) == "" {
		return Outcome{
			Kind:   FailEmpty,
			Reason: "Generated message is empty",
		}
	}

	if n := utf8.RuneCountInString(msg); n > maxLength {
		return Outcome{
			Kind:         FailTooLong,
			Reason:       fmt.Sprintf("Message too long: %d characters (max %d)", n, maxLength),
			ActualLength: n,
			Limit:        maxLength,
		}
	}

	switch format {
	case config.FormatConventional:
		if !conventionalRe.MatchString(msg) {
			return Outcome{
				Kind: FailFormatMismatch,
				Reason: "Message does not match Conventional Commits format.\n" +
					"Expected: type(scope): description\n" +
					"Got: " + msg,
			}
		}
	case config.FormatGitmoji:
		if !gitmojiRe.MatchString(msg) {
			return Outcome{
				Kind: FailFormatMismatch,
				Reason: "Message does not start with an emoji.\n" +
					"Expected: emoji description\n" +
					"Got: " + msg,
			}
		}
	}

	return Outcome{Passed: true}
}
