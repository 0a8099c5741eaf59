package method

import "strings"

// Qualitative levels rate a comparable against the subject.
const (
	LevelMuchBetter = "MB"
	LevelBetter     = "B"
	LevelEqual      = "E"
	LevelWorse      = "W"
	LevelMuchWorse  = "MW"
)

// LevelTable maps a level code to its default adjustment percent.
type LevelTable map[string]float64

// DefaultLevels returns the stock table. A better comparable is adjusted
// down, a worse one up.
func DefaultLevels() LevelTable {
	return LevelTable{
		LevelMuchBetter: -10,
		LevelBetter:     -5,
		LevelEqual:      0,
		LevelWorse:      5,
		LevelMuchWorse:  10,
	}
}

// Percent returns the adjustment percent of level. Unknown levels map to 0.
func (t LevelTable) Percent(level string) float64 {
	return t[strings.ToUpper(strings.TrimSpace(level))]
}
