// Package clock provides the injectable time source consumed by the admission
// controller. Production code uses [Real]; tests use [Fake] to make token
// refill math exact instead of sleep-based.
package clock
