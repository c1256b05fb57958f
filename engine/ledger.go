// engine/ledger.go
package engine

import (
	"log"

	"darts-match-system/models"
)

// The turn ledger is the sole authority for a participant's current score.
// MatchPlayer.Score is a derived cache updated in the same commit as each
// accepted turn; these helpers fold the ledger to recompute and verify it.

// FoldScore replays the ledger for one participant: starting score minus the
// deltas of normal and checkout turns. Bust turns never change the score.
func FoldScore(startingScore int, turns []models.MatchTurn, userID string) int {
	score := startingScore
	for _, t := range turns {
		if t.UserID != userID {
			continue
		}
		if t.Outcome == models.OutcomeBust {
			continue
		}
		score -= t.Total
	}
	return score
}

// reconcile rewrites every cached score from the ledger and reports how many
// caches disagreed. Run on session hydration: the ledger wins, so a crash
// between AppendTurn and SaveMatch heals here.
func reconcile(m *models.Match, startingScore int, turns []models.MatchTurn) int {
	mismatches := 0
	for i := range m.Players {
		p := &m.Players[i]
		folded := FoldScore(startingScore, turns, p.UserID)
		if folded != p.Score {
			log.Printf("[LEDGER] match %s: cached score %d for %s disagrees with ledger %d, ledger wins",
				m.ID, p.Score, p.UserID, folded)
			p.Score = folded
			mismatches++
		}
	}
	if len(turns) > 0 && turns[len(turns)-1].TurnNumber != m.TurnCount {
		log.Printf("[LEDGER] match %s: turn count %d disagrees with ledger tail %d, ledger wins",
			m.ID, m.TurnCount, turns[len(turns)-1].TurnNumber)
		m.TurnCount = turns[len(turns)-1].TurnNumber
		mismatches++
	}
	return mismatches
}
