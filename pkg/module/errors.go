package module

import (
	"errors"
	"fmt"
)

var (
	// ErrModuleNotFound indicates no module is registered under the id.
	ErrModuleNotFound = errors.New("module not found")

	// ErrDuplicateModule indicates a module with the same id is already registered.
	ErrDuplicateModule = errors.New("module already registered")

	// ErrInvalidModule indicates a module with malformed metadata.
	ErrInvalidModule = errors.New("invalid module")

	// ErrInvalidTransition indicates the module is mid-transition.
	ErrInvalidTransition = errors.New("invalid module state transition")
)

// Error wraps module errors with the operation and module id.
type Error struct {
	Op       string
	ModuleID string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s module %s: %v", e.Op, e.ModuleID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newError(op, moduleID string, err error) *Error {
	return &Error{Op: op, ModuleID: moduleID, Err: err}
}

// IsModuleNotFound checks if an error indicates an unknown module id.
func IsModuleNotFound(err error) bool {
	return errors.Is(err, ErrModuleNotFound)
}

// IsDuplicateModule checks if an error indicates a re-registered id.
func IsDuplicateModule(err error) bool {
	return errors.Is(err, ErrDuplicateModule)
}
