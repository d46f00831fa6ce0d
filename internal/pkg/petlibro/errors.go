package petlibro

import "errors"

var (
	// ErrNotReady wraps any failure during adapter startup. The caller is
	// expected to retry the whole start on its own schedule.
	ErrNotReady = errors.New("device not ready")

	// ErrTimeout is returned when a request/response correlation loop gives
	// up waiting for the device. The original protocol has no reply
	// addressing, so correlation is timestamp-advance polling with a bound.
	ErrTimeout = errors.New("timed out waiting for device")

	// ErrUnsupported is returned for commands the device variant does not
	// implement (pump commands on a feeder, door commands on a fountain).
	ErrUnsupported = errors.New("command not supported by device type")

	ErrInvalidSerial = errors.New("invalid serial number")
)
