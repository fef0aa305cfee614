// internal/domain/stock/reconciler.go
package stock

import "github.com/your-org/commerce-session/internal/domain/outcome"

// Decision is the admission verdict for a requested quantity
type Decision struct {
	Admitted  bool
	Reason    outcome.Reason
	Suggested int
}

// Admit decides whether add more units can join existing units under an optional stock ceiling.
// A nil ceiling means the product is unconstrained.
func Admit(existing, add int, ceiling *int) Decision {
	if ceiling != nil && *ceiling <= 0 {
		return Decision{Reason: outcome.ReasonOutOfStock}
	}

	requested := existing + add
	if ceiling != nil && requested > *ceiling {
		remaining := *ceiling - existing
		if remaining > 0 {
			return Decision{Reason: outcome.ReasonQuantityCapped, Suggested: remaining}
		}
		return Decision{Reason: outcome.ReasonMaxReached}
	}

	return Decision{Admitted: true}
}

// AdmitAbsolute decides whether an item may be set to exactly quantity units
func AdmitAbsolute(quantity int, ceiling *int) Decision {
	return Admit(0, quantity, ceiling)
}

// Result converts a rejected decision into the UI result shape
func (d Decision) Result() outcome.Result {
	switch d.Reason {
	case outcome.ReasonNone:
		return outcome.Ok()
	case outcome.ReasonQuantityCapped:
		return outcome.Capped(d.Suggested)
	case outcome.ReasonOutOfStock:
		return outcome.Reject(d.Reason, "product is out of stock")
	case outcome.ReasonMaxReached:
		return outcome.Reject(d.Reason, "maximum available quantity is already in the cart")
	default:
		return outcome.Reject(d.Reason, string(d.Reason))
	}
}
