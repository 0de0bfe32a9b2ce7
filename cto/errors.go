package cto

import "errors"

// State-precondition errors. Operations failing with one of these cannot
// proceed and must not be retried automatically.
var (
	// ErrAssetNotSellable means the asset exists but its status is not
	// SELLABLE, so the configuration cannot be validated.
	ErrAssetNotSellable = errors.New("asset is not sellable")

	// ErrAssetLookupFailed means the upstream asset service could not be
	// reached or returned an error. Validation fails closed; this is
	// distinguishable from a genuine business rejection.
	ErrAssetLookupFailed = errors.New("asset lookup failed")

	// ErrNoActiveRuleSet means no rule set is currently active.
	ErrNoActiveRuleSet = errors.New("no active rule set")

	// ErrRuleNotFound means no version exists for the given rule ID.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrRuleVersionNotFound means the referenced rule version ID does
	// not exist.
	ErrRuleVersionNotFound = errors.New("rule version not found")

	// ErrAlreadyEvaluated means the configuration already has recorded
	// decisions; committed outcomes are never recomputed.
	ErrAlreadyEvaluated = errors.New("configuration already evaluated")
)

// ErrAuditNotAvailable means an audit read was attempted before any
// decision was recorded for the configuration.
var ErrAuditNotAvailable = errors.New("audit not available")

// ErrInvalidSimulation signals a malformed what-if request, such as an
// empty component list or an unknown base configuration.
var ErrInvalidSimulation = errors.New("invalid simulation request")

// Validation error codes surfaced to callers.
const (
	CodeCompatibilityError = "COMPATIBILITY_ERROR"
	CodeQuantityError      = "QUANTITY_ERROR"
	CodeDependencyError    = "DEPENDENCY_ERROR"
	CodeExclusionError     = "EXCLUSION_ERROR"
	CodeInputError         = "INPUT_ERROR"
)

// ValidationError is a single structured rule violation. Evaluators
// return these as values rather than Go errors so a caller can always
// render every violated rule at once.
type ValidationError struct {
	Code               string `json:"code"`
	Message            string `json:"message"`
	ComponentType      string `json:"componentType,omitempty"`
	ComponentReference string `json:"componentReference,omitempty"`
	Rule               string `json:"rule,omitempty"`
}

func (e ValidationError) Error() string {
	return e.Code + ": " + e.Message
}
