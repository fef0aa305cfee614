// internal/domain/outcome/result.go
package outcome

import "fmt"

// Reason identifies why a mutator did not fully apply
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonOutOfStock           Reason = "OutOfStock"
	ReasonQuantityCapped       Reason = "QuantityCapped"
	ReasonMaxReached           Reason = "MaxReached"
	ReasonAlreadyExists        Reason = "AlreadyExists"
	ReasonInvalidCode          Reason = "InvalidCode"
	ReasonInactive             Reason = "Inactive"
	ReasonExpired              Reason = "Expired"
	ReasonNotYetValid          Reason = "NotYetValid"
	ReasonBelowMinimum         Reason = "BelowMinimum"
	ReasonUsageLimitReached    Reason = "UsageLimitReached"
	ReasonPerUserLimitReached  Reason = "PerUserLimitReached"
	ReasonConflict             Reason = "Conflict"
	ReasonPersistenceFailure   Reason = "PersistenceFailure"
	ReasonPersistedLocallyOnly Reason = "PersistedLocallyOnly"
	ReasonInvalidInput         Reason = "InvalidInput"
	ReasonSignInRequired       Reason = "SignInRequired"
)

// Retryable reports whether re-invoking the same operation may succeed
func (r Reason) Retryable() bool {
	return r == ReasonConflict || r == ReasonPersistenceFailure
}

// Outcome is the class of a mutator result
type Outcome string

const (
	// Applied means the mutation is in memory and durably written
	Applied Outcome = "applied"
	// AppliedLocallyOnly means the mutation is kept but only the local tier accepted it
	AppliedLocallyOnly Outcome = "applied_locally_only"
	// RolledBack means the optimistic mutation was reverted
	RolledBack Outcome = "rolled_back"
	// Rejected means validation failed and nothing was mutated
	Rejected Outcome = "rejected"
)

// Result is returned by every mutator exposed to the UI layer
type Result struct {
	Success           bool    `json:"success"`
	Error             string  `json:"error,omitempty"`
	SuggestedQuantity *int    `json:"suggestedQuantity,omitempty"`
	Reason            Reason  `json:"reason,omitempty"`
	Outcome           Outcome `json:"outcome"`
	// Shortfall is the missing subtotal amount for BelowMinimum, formatted with two decimals
	Shortfall string `json:"shortfall,omitempty"`
}

// Ok returns a fully applied result
func Ok() Result {
	return Result{Success: true, Outcome: Applied}
}

// LocallyOnly returns a successful result carrying a non-fatal warning
func LocallyOnly(msg string) Result {
	return Result{
		Success: true,
		Error:   msg,
		Reason:  ReasonPersistedLocallyOnly,
		Outcome: AppliedLocallyOnly,
	}
}

// RollBack returns a failure whose optimistic mutation has been reverted
func RollBack(reason Reason, msg string) Result {
	return Result{Success: false, Error: msg, Reason: reason, Outcome: RolledBack}
}

// Reject returns a validation failure
func Reject(reason Reason, msg string) Result {
	return Result{Success: false, Error: msg, Reason: reason, Outcome: Rejected}
}

// Capped returns a QuantityCapped rejection carrying the admissible quantity
func Capped(remaining int) Result {
	r := Reject(ReasonQuantityCapped, fmt.Sprintf("only %d more can be added", remaining))
	r.SuggestedQuantity = &remaining
	return r
}

// Warning reports whether the result succeeded with a warning attached
func (r Result) Warning() bool {
	return r.Success && r.Reason == ReasonPersistedLocallyOnly
}
