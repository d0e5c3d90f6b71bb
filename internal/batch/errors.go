package batch

import (
	"errors"
	"fmt"
)

var ErrInvalidParameters = errors.New("invalid parameters")

func NewErrInvalidParam(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidParameters, name, err)
}
