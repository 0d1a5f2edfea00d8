package core

import (
	"github.com/cockroachdb/errors"
)

var (
	// frame protocol
	ErrFrameInProgress      = errors.New("a frame is already in progress")
	ErrFrameNotInProgress   = errors.New("no frame is in progress")
	ErrForeignCommandBuffer = errors.New("command buffer does not belong to the current frame")

	// descriptors
	ErrDuplicateBinding       = errors.New("descriptor binding already in use")
	ErrUnknownBinding         = errors.New("layout does not contain the specified binding")
	ErrMultiDescriptorBinding = errors.New("binding descriptor info expects a single resource")
	ErrPoolExhausted          = errors.New("descriptor pool exhausted")

	// buffers
	ErrBufferNotMapped = errors.New("buffer memory is not mapped")
	ErrBufferRange     = errors.New("range exceeds buffer bounds")

	// presentation and device
	ErrSwapchainFormatChanged = errors.New("swap chain image or depth format has changed")
	ErrNoSuitableFormat       = errors.New("failed to find supported format")
	ErrNoSuitableDevice       = errors.New("failed to find a suitable GPU")
	ErrNoSuitableMemoryType   = errors.New("failed to find suitable memory type")

	// scene
	ErrTooManyLights = errors.New("too many point lights")

	ErrUnknown = errors.New("unknown")
)

// ContractViolation wraps a sentinel as an assertion failure: the caller broke a precondition
// and nothing was changed.
func ContractViolation(sentinel error, format string, args ...interface{}) error {
	return errors.WithAssertionFailure(errors.Wrapf(sentinel, format, args...))
}

// IsContractViolation reports whether err was produced by ContractViolation.
func IsContractViolation(err error) bool {
	return errors.HasAssertionFailure(err)
}
