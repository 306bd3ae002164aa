package game

// =============================================================================
// SCORING POLICY - Deterministic, no side effects
// =============================================================================

const (
	// BonusInterval marks every 11th tap of a user within a round as a bonus.
	BonusInterval = 11

	BaseScore  = 1
	BonusScore = 10
)

// Score returns the score for a user's tapNumber-th tap in a round.
//
// Exempt callers participate mechanically (their taps consume sequence
// numbers) but never accrue score. For everyone else the tap is worth 1,
// except every 11th tap which is worth 10.
func Score(tapNumber int, exempt bool) int64 {
	if exempt {
		return 0
	}
	if tapNumber%BonusInterval == 0 {
		return BonusScore
	}
	return BaseScore
}
