package concern

import (
	"fmt"
)

var ErrConcernNotFound = fmt.Errorf("concern not found")

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrConcernNotFound, id)
}
