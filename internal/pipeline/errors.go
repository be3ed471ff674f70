package pipeline

import (
	"errors"
	"fmt"

	"github.com/roach88/pinbase/internal/contract"
)

// ContractError is returned when a resolved catalog fails validation. The
// previous snapshot remains current.
type ContractError struct {
	Report *contract.Report
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("catalog failed validation: %d violations", len(e.Report.Violations))
}

// IsContractError reports whether err is a validation failure.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}
