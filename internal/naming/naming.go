// Package naming derives filesystem-safe artifact names for notes and temp recordings.
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/voxnotes/internal/models"
)

// TimestampLayout is the UTC, second-precision stem prefix.
const TimestampLayout = "20060102150405"

// MaxLabelRunes bounds the label segment so artifact names stay under common filename limits.
const MaxLabelRunes = 100

// Artifact extensions.
const (
	AudioExt = ".webm"
	TextExt  = ".txt"
	DocxExt  = ".docx"
)

const tempPrefix = "tmp-"

var (
	// Letters, digits, combining marks (Devanagari vowel signs), underscore, whitespace, hyphen.
	disallowedRe = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s-]`)
	separatorRe  = regexp.MustCompile(`[-\s]+`)
	tempNameRe   = regexp.MustCompile(`^tmp-(\d{14})-[0-9a-f]{8}\.webm$`)
)

// SanitizeLabel strips everything but word characters, whitespace and hyphens,
// collapses whitespace/hyphen runs into one hyphen and trims the result.
// SanitizeLabel(SanitizeLabel(x)) == SanitizeLabel(x).
func SanitizeLabel(raw string) string {
	s := disallowedRe.ReplaceAllString(raw, "")
	s = strings.TrimSpace(s)
	s = separatorRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if r := []rune(s); len(r) > MaxLabelRunes {
		s = strings.Trim(string(r[:MaxLabelRunes]), "-")
	}
	return s
}

// Timestamp formats t as the stem timestamp segment.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// BuildStem returns "{YYYYMMDDHHMMSS}_{label}".
func BuildStem(t time.Time, label string) string {
	return Timestamp(t) + "_" + label
}

// NamesFor returns the artifact triple for stem.
func NamesFor(stem string) models.ArtifactNames {
	return models.ArtifactNames{
		Audio: stem + AudioExt,
		Text:  stem + TextExt,
		Docx:  stem + DocxExt,
	}
}

// Disambiguate returns the label used for the n-th attempt at a free stem.
func Disambiguate(label string, n int) string {
	if n <= 1 {
		return label
	}
	return fmt.Sprintf("%s-%d", label, n)
}

// Relabel replaces the label segment of an existing artifact name, keeping its
// timestamp (everything before the first '_') and extension. Names without '_'
// get the timestamp of now.
func Relabel(existing, label string, now time.Time) string {
	ts, _, found := strings.Cut(existing, "_")
	if !found {
		ts = Timestamp(now)
	}
	return ts + "_" + label + filepath.Ext(existing)
}

// LabelOf returns the label segment of a final artifact name.
func LabelOf(name string) string {
	_, rest, found := strings.Cut(name, "_")
	if !found {
		rest = name
	}
	return strings.TrimSuffix(rest, filepath.Ext(rest))
}

// NewTempName returns a collision-resistant temp recording name for t.
func NewTempName(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return tempPrefix + Timestamp(t) + "-" + suffix + AudioExt
}

// IsTempName reports whether name was produced by NewTempName.
func IsTempName(name string) bool {
	return tempNameRe.MatchString(name)
}

// TempCreatedAt returns the upload time encoded in a temp recording name.
func TempCreatedAt(name string) (time.Time, bool) {
	m := tempNameRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(TimestampLayout, m[1], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
