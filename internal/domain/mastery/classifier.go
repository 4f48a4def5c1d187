package mastery

// Classification thresholds. Each tier is gated by both accuracy and
// interaction volume, so high accuracy on a handful of answers does not
// count as mastery.
const (
	MasteredAccuracy     = 0.90
	MasteredVolume       = 10
	AdvancedAccuracy     = 0.75
	AdvancedVolume       = 7
	IntermediateAccuracy = 0.50
	IntermediateVolume   = 4
)

// rule is one row of the classification table.
type rule struct {
	minAccuracy float64
	minVolume   int
	level       Level
}

// rules is evaluated top-down; the first match wins. The tiers are not
// mutually exclusive by accuracy alone, volume gates each of them.
var rules = []rule{
	{MasteredAccuracy, MasteredVolume, LevelMastered},
	{AdvancedAccuracy, AdvancedVolume, LevelAdvanced},
	{IntermediateAccuracy, IntermediateVolume, LevelIntermediate},
	{0, 1, LevelBeginner},
}

// Classify maps (accuracy, totalInteractions) to a mastery level.
// Pure function: the same inputs always give the same level, and a level
// reached earlier can be lost again when accuracy drops.
func Classify(accuracy float64, totalInteractions int) Level {
	for _, r := range rules {
		if accuracy >= r.minAccuracy && totalInteractions >= r.minVolume {
			return r.level
		}
	}
	return LevelNotStarted
}
