// Package usm implements the device runtime behind the offload pipeline: USM
// (unified shared memory) buffers bound to command queues, classification of
// host values as device-backed or not, byte-exact transfers between host
// arrays and USM memory, and marshaling of kernel arguments for launch.
//
// Everything is explicit about which queue it targets: buffers are allocated
// against a queue, launches are issued to a queue, and there is no implicit
// "current device" anywhere in the package.
//
// Launches are synchronous: Done blocks the issuing goroutine until the
// device signals completion. Buffers are not safe for concurrent use from
// two launches; callers must serialize or use independent buffers.
package usm
