package engine

import "darts-match-system/models"

const bullValue = 25

// dartDelta validates one dart and returns its score contribution.
func dartDelta(d Dart) (int, *Error) {
	if d.Value == 0 {
		// Miss. Multiplier carries no information but must stay sane.
		if d.Multiplier < 0 || d.Multiplier > 3 {
			return 0, reject(CodeValidation, "invalid multiplier %d for missed dart", d.Multiplier)
		}
		return 0, nil
	}
	if d.Value == bullValue {
		if d.Multiplier != 1 && d.Multiplier != 2 {
			return 0, reject(CodeValidation, "bull supports only single (25) or double (50), got multiplier %d", d.Multiplier)
		}
		return bullValue * d.Multiplier, nil
	}
	if d.Value < 1 || d.Value > 20 {
		return 0, reject(CodeValidation, "invalid dart value %d", d.Value)
	}
	if d.Multiplier < 1 || d.Multiplier > 3 {
		return 0, reject(CodeValidation, "invalid multiplier %d for value %d", d.Multiplier, d.Value)
	}
	return d.Value * d.Multiplier, nil
}

// lastThrown returns the last dart that actually scored. A turn of all misses
// has no last thrown dart (ok=false).
func lastThrown(darts [3]Dart) (Dart, bool) {
	for i := len(darts) - 1; i >= 0; i-- {
		if darts[i].Value != 0 {
			return darts[i], true
		}
	}
	return Dart{}, false
}

func isDouble(d Dart) bool {
	return d.Multiplier == 2
}

// evaluateTurn applies the scoring rule for one three-dart turn.
// Returned delta is the raw sum of the dart contributions even for busts;
// bust turns leave the score unchanged (the ledger records them with a
// resulting score equal to the prior score).
func evaluateTurn(score int, checkoutRule string, darts [3]Dart) (delta int, outcome string, resulting int, err *Error) {
	total := 0
	for _, d := range darts {
		dd, verr := dartDelta(d)
		if verr != nil {
			return 0, "", 0, verr
		}
		total += dd
	}

	candidate := score - total
	switch {
	case candidate < 0:
		return total, models.OutcomeBust, score, nil
	case candidate == 0:
		if checkoutRule == models.CheckoutDoubleOut {
			last, ok := lastThrown(darts)
			if !ok || !isDouble(last) {
				return total, models.OutcomeBust, score, nil
			}
		}
		return total, models.OutcomeCheckout, 0, nil
	default:
		return total, models.OutcomeNormal, candidate, nil
	}
}
