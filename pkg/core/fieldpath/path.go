// Package fieldpath builds the textual keys that address single cells in the
// appraisal form tree.
//
// Shapes:
//
//	section.field                              fixed calculation line
//	section.surveys.<col>.field                per comparable column
//	section.group.<row>.field                  per factor row
//	section.group.<row>.surveys.<col>.field    factor row × comparable column
//
// Every logical cell has exactly one spelling. Rules and the engine compare
// paths as plain strings, so two spellings of the same cell would silently
// break change detection.
package fieldpath

import (
	"strconv"
	"strings"
)

// Path is an opaque key into the form tree.
type Path string

// ColumnSegment names the segment that precedes a comparable column index.
const ColumnSegment = "surveys"

const sep = "."

// String implements fmt.Stringer.
func (p Path) String() string { return string(p) }

// Section returns the root path of a section.
func Section(name string) Path {
	return Path(name)
}

// Field addresses a fixed line of a section, e.g. "saleGrid.finalValue".
func Field(section, field string) Path {
	return join(section, field)
}

// Column addresses a per-survey calculation cell, e.g.
// "saleGrid.surveys.2.adjustedValue".
func Column(section string, col int, field string) Path {
	return join(section, ColumnSegment, strconv.Itoa(col), field)
}

// Row addresses a per-row cell that is not bound to a survey column, e.g.
// "wqs.qualitativeFactors.0.weight".
func Row(section, group string, row int, field string) Path {
	return join(section, group, strconv.Itoa(row), field)
}

// Cell addresses a row × survey cell, e.g.
// "saleGrid.qualitativeFactors.3.surveys.1.adjustPct".
func Cell(section, group string, row, col int, field string) Path {
	return join(section, group, strconv.Itoa(row), ColumnSegment, strconv.Itoa(col), field)
}

// SplitIndex locates the numeric index that follows the first occurrence of
// segment in p. It returns the text before the index (ending in
// "segment."), the index, and the text after it (starting with "."). ok is
// false when p has no such index.
func SplitIndex(p Path, segment string) (prefix string, idx int, suffix string, ok bool) {
	parts := strings.Split(string(p), sep)
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] != segment {
			continue
		}
		n, err := strconv.Atoi(parts[i+1])
		if err != nil || n < 0 {
			continue
		}
		prefix = strings.Join(parts[:i+1], sep) + sep
		if i+2 < len(parts) {
			suffix = sep + strings.Join(parts[i+2:], sep)
		}
		return prefix, n, suffix, true
	}
	return "", 0, "", false
}

// WithIndex rewrites the index that follows segment. Paths without one are
// returned unchanged.
func WithIndex(p Path, segment string, idx int) Path {
	prefix, _, suffix, ok := SplitIndex(p, segment)
	if !ok {
		return p
	}
	return Path(prefix + strconv.Itoa(idx) + suffix)
}

// SplitColumn locates the survey column index inside p.
func SplitColumn(p Path) (prefix string, col int, suffix string, ok bool) {
	return SplitIndex(p, ColumnSegment)
}

// WithColumn rewrites the survey column index of p.
func WithColumn(p Path, col int) Path {
	return WithIndex(p, ColumnSegment, col)
}

// HasPrefix reports whether p lies inside the subtree rooted at root.
func HasPrefix(p, root Path) bool {
	if p == root {
		return true
	}
	return strings.HasPrefix(string(p), string(root)+sep)
}

func join(parts ...string) Path {
	return Path(strings.Join(parts, sep))
}
