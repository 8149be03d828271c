// Package ident holds the canonical student-ID policy shared by every
// nbmoodle component. Moodle exports carry a bare numeric ID; the
// gradebook keys students by a formatted ID built from a fixed prefix
// and a zero-padded numeric suffix (e.g. "k00012345"). A single
// Formatter instance is built from configuration and injected into the
// importer, relocator and exporter so the policy cannot diverge
// between components.
package ident

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoStudentID reports that a submission path carries no recognizable
// student-ID token.
var ErrNoStudentID = errors.New("ident: no student ID token in path")

// Formatter formats and parses canonical student IDs.
// Pad is the zero-padded width of the numeric suffix; a Pad of 0
// disables padding. Prefix may be empty.
type Formatter struct {
	Prefix string
	Pad    int
}

// Default is the policy used by the original course setup: "k" followed
// by an 8-digit zero-padded matriculation number.
var Default = Formatter{Prefix: "k", Pad: 8}

// Format converts a raw numeric ID (as read from a Moodle export) into
// the canonical form. A non-numeric input is an error; callers treat it
// as fatal because it means the input file is not a participant export.
func (f Formatter) Format(numeric string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(numeric))
	if err != nil {
		return "", fmt.Errorf("malformed numeric student ID %q: %w", numeric, err)
	}
	if n < 0 {
		return "", fmt.Errorf("malformed numeric student ID %q: negative", numeric)
	}
	return f.FormatInt(n), nil
}

// FormatInt formats an already-parsed numeric ID.
func (f Formatter) FormatInt(n int) string {
	if f.Pad <= 0 {
		return f.Prefix + strconv.Itoa(n)
	}
	return fmt.Sprintf("%s%0*d", f.Prefix, f.Pad, n)
}

// Parse recovers the numeric ID from a canonical ID. Format followed by
// Parse returns the original integer for any pad width at least as wide
// as the number of digits.
func (f Formatter) Parse(id string) (int, error) {
	if !strings.HasPrefix(id, f.Prefix) {
		return 0, fmt.Errorf("student ID %q does not start with prefix %q", id, f.Prefix)
	}
	n, err := strconv.Atoi(id[len(f.Prefix):])
	if err != nil {
		return 0, fmt.Errorf("student ID %q has a non-numeric suffix: %w", id, err)
	}
	return n, nil
}

// FindInPath extracts the student ID embedded in a submission path.
// Moodle archive entries carry the ID as "_<prefix><digits>" somewhere
// in the file name, case-insensitively. The matched digits are
// re-formatted through the policy, so "..._K12345.ipynb" and
// "..._k00012345.ipynb" resolve to the same canonical ID. Returns
// ErrNoStudentID when no token matches.
func (f Formatter) FindInPath(path string) (string, error) {
	m := f.pathPattern().FindStringSubmatch(path)
	if m == nil {
		return "", ErrNoStudentID
	}
	return f.Format(m[1])
}

func (f Formatter) pathPattern() *regexp.Regexp {
	return regexp.MustCompile(`(?i)_` + regexp.QuoteMeta(f.Prefix) + `([0-9]+)`)
}
