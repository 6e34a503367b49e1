package usm

import "github.com/pkg/errors"

// Error taxonomy of the runtime. All of these indicate a contract violation
// by the caller, not a transient condition: they are returned immediately,
// wrapped with call-site context, and there is no retry anywhere in the
// package. Match with errors.Is.
var (
	// ErrNotDeviceBacked is returned when an operation requires USM-backed
	// memory and the given value does not expose any.
	ErrNotDeviceBacked = errors.New("not backed by USM memory")

	// ErrUnsupportedDType is returned when a host array's dtype is outside
	// the transfer-supported set (32/64-bit integers and floats).
	ErrUnsupportedDType = errors.New("dtype not supported for transfer")

	// ErrSizeMismatch is returned when buffer byte size and host array byte
	// size disagree, or a device-to-host destination is not exactly sized
	// and contiguous.
	ErrSizeMismatch = errors.New("size of data does not match")

	// ErrQueueRequired is returned when materializing USM memory without a
	// queue to allocate on.
	ErrQueueRequired = errors.New("queue cannot be nil")

	// ErrInvalidQueueType is returned when the given queue handle is not a
	// usable queue (already destroyed).
	ErrInvalidQueueType = errors.New("invalid queue")

	// ErrInvalidMemoryKind is returned for a memory kind outside
	// {shared, device, host}.
	ErrInvalidMemoryKind = errors.New("invalid USM memory kind")

	// ErrInvalidRange is returned for a launch range that is not a
	// positive-integer tuple, or local/global ranges of different ranks.
	ErrInvalidRange = errors.New("invalid launch range")

	// ErrIndivisibleRange is returned when the local range does not evenly
	// divide the global range componentwise. Devices reject non-uniform
	// work-groups.
	ErrIndivisibleRange = errors.New("local range does not evenly divide global range")
)
