// Package detect implements the five fraud detection signals. Every
// detector is a pure, stateless function of its inputs: no I/O, no shared
// state, safe to run concurrently for a single check.
package detect

import (
	"strings"

	"github.com/harrierhq/harrier/internal/domain"
)

// Attribute weights for the composite duplicate score. Amount matches
// weigh highest, then date, then description.
const (
	duplicateAmountWeight      = 0.5
	duplicateDateWeight        = 0.3
	duplicateDescriptionWeight = 0.2
)

// CheckDuplicate compares a transaction against history and returns the
// best (highest-scoring) match. IsDuplicate is true when the score reaches
// cfg.DuplicateScoreThreshold.
func CheckDuplicate(cfg domain.FraudPreventionConfig, tx domain.Transaction, history []domain.Transaction) domain.DuplicateCheck {
	var best domain.DuplicateCheck

	txDesc := normalizeDescription(tx.Description)

	for i := range history {
		prior := &history[i]

		sameAmount := prior.Amount == tx.Amount
		sameDate := sameCalendarDate(prior.Date, tx.Date)
		sameDescription := txDesc != "" && normalizeDescription(prior.Description) == txDesc

		score := 0.0
		if sameAmount {
			score += duplicateAmountWeight
		}
		if sameDate {
			score += duplicateDateWeight
		}
		if sameDescription {
			score += duplicateDescriptionWeight
		}

		if score > best.DuplicateScore {
			best = domain.DuplicateCheck{
				DuplicateScore:       score,
				SameAmount:           sameAmount,
				SameDate:             sameDate,
				SameDescription:      sameDescription,
				MatchedTransactionID: prior.ID,
			}
		}
	}

	best.IsDuplicate = best.DuplicateScore >= cfg.DuplicateScoreThreshold
	return best
}

// normalizeDescription lowercases and collapses internal whitespace so
// cosmetic differences don't defeat matching.
func normalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
