// Package policy contains the verification decision rules. Everything here is
// pure: inputs in, decision out, no storage and no clocks other than the one
// passed in. Side effects (notifications, flagging) live in the service layer.
package policy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nadirhuss/ledgercore/internal/domain"
)

// largeWithdrawalRatio is the fraction of total credit above which a single
// pending withdrawal blocks the batch.
var largeWithdrawalRatio = decimal.NewFromFloat(0.7)

// Pending is one not-yet-committed movement under evaluation.
type Pending struct {
	Type   domain.EntryType
	Amount decimal.Decimal
}

// Decision is the outcome of the pre-batch gate.
type Decision struct {
	RequiresVerification bool
	Reason               string
}

// Evaluate runs the pre-batch verification gate. Rules apply in precedence
// order, first match wins:
//
//  1. non-VIP clients are never gated
//  2. an unresolved verification flag blocks everything
//  3. too many days since the last verification (when a frequency is set)
//  4. any pending withdrawal exceeding 70% of accumulated credit
//
// Rule 4 is skipped entirely while the ledger has no credit, so a fresh
// ledger can never divide by zero.
func Evaluate(client *domain.Client, ledger *domain.Ledger, pending []Pending, now time.Time) Decision {
	if !client.IsVIP {
		return Decision{}
	}

	if client.VerificationRequired {
		return Decision{
			RequiresVerification: true,
			Reason:               "Previous verification still pending",
		}
	}

	if client.VerificationFrequency != nil && client.LastVerificationDate != nil {
		days := daysBetween(*client.LastVerificationDate, now)
		if days >= *client.VerificationFrequency {
			return Decision{
				RequiresVerification: true,
				Reason:               fmt.Sprintf("Time-based verification required (%d days since last verification)", days),
			}
		}
	}

	if ledger.TotalCredit.IsPositive() {
		for _, p := range pending {
			if p.Type != domain.EntryPayee {
				continue
			}
			ratio := p.Amount.Div(ledger.TotalCredit)
			if ratio.GreaterThan(largeWithdrawalRatio) {
				pct := ratio.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
				return Decision{
					RequiresVerification: true,
					Reason:               fmt.Sprintf("Large withdrawal detected (%d%% of total credit)", pct),
				}
			}
		}
	}

	return Decision{}
}

// CheckAccumulated is the post-commit flagging pass. It reads the post-batch
// ledger rather than the pending batch: the time rule is shared with
// Evaluate, the withdrawal rule looks at the cumulative payee-to-credit
// ratio. A true result means the client must verify before their next batch.
func CheckAccumulated(client *domain.Client, ledger *domain.Ledger, now time.Time) bool {
	if !client.IsVIP {
		return false
	}

	if client.VerificationFrequency != nil && client.LastVerificationDate != nil {
		if daysBetween(*client.LastVerificationDate, now) >= *client.VerificationFrequency {
			return true
		}
	}

	if ledger.TotalCredit.IsPositive() {
		if ledger.TotalPayee.Div(ledger.TotalCredit).GreaterThan(largeWithdrawalRatio) {
			return true
		}
	}

	return false
}

// daysBetween counts whole days elapsed from t to now, truncating partial
// days.
func daysBetween(t, now time.Time) int {
	return int(now.Sub(t) / (24 * time.Hour))
}
