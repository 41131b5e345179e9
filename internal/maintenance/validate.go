package maintenance

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New()

// ValidateRunRequest rejects a run before any state is mutated: a bad
// profile or options value is a synchronous error and never starts a run.
// Struct tags cover required fields and positivity; the relative ordering
// of the two thresholds is deliberately left unconstrained (decideAction
// tolerates RebuildThreshold < ReorganizeThreshold by taking their max),
// so only strict positivity is enforced here.
func ValidateRunRequest(profile ServerProfile, opts MaintenanceOptions) error {
	if err := structValidator.Struct(profile); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	if opts.ReorganizeThreshold <= 0 || opts.RebuildThreshold <= 0 {
		return errors.New("fragmentation thresholds must be positive")
	}
	if err := structValidator.Struct(opts); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}
