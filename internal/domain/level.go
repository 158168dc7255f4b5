package domain

const (
	xpPerEarlyLevel = 100
	xpPerLateLevel  = 200
	levelBoundary   = 10
	xpAtBoundary    = levelBoundary * xpPerEarlyLevel
)

// Level derives the level for a total XP value. Levels 1 to 10 cost 100 XP each, every level above costs 200.
func Level(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	if totalXP < xpAtBoundary {
		return totalXP/xpPerEarlyLevel + 1
	}
	return levelBoundary + (totalXP-xpAtBoundary)/xpPerLateLevel + 1
}

// NextLevelThreshold is the total XP at which level+1 is reached.
func NextLevelThreshold(level int) int {
	if level <= levelBoundary {
		return level * xpPerEarlyLevel
	}
	return xpAtBoundary + (level-levelBoundary)*xpPerLateLevel
}

// XPToNextLevel is the XP still needed to reach the next level. It is always positive.
func XPToNextLevel(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return NextLevelThreshold(Level(totalXP)) - totalXP
}
