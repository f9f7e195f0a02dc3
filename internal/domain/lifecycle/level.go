// internal/domain/lifecycle/level.go
package lifecycle

import "math"

// levelThresholds[i] is the XP needed to reach level i+1.
var levelThresholds = []int64{0, 100, 250, 500, 1000}

// MaxLevel is the highest level; its threshold is the last doubling that
// fits in an int64.
var MaxLevel = LevelForXP(math.MaxInt64)

// LevelForXP returns the level reached with xp points. Levels start at 1.
// After the fixed thresholds each level needs twice the XP of the previous one.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	level := 0
	for _, t := range levelThresholds {
		if xp < t {
			return level
		}
		level++
	}
	next := levelThresholds[len(levelThresholds)-1] * 2
	for xp >= next {
		level++
		if next > math.MaxInt64/2 {
			break
		}
		next *= 2
	}
	return level
}

// XPForLevel returns the XP at which level starts. Levels above MaxLevel
// return the threshold of MaxLevel.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level <= len(levelThresholds) {
		return levelThresholds[level-1]
	}
	xp := levelThresholds[len(levelThresholds)-1]
	for l := len(levelThresholds); l < level && xp <= math.MaxInt64/2; l++ {
		xp *= 2
	}
	return xp
}
