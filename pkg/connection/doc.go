// Package connection provides the delay schedules used around connection
// setup.
//
// Two schedules are predefined:
//
//   - Accept: a server accept loop that hits a transient error waits 5ms,
//     doubling up to 1s, with no jitter. A successful accept resets it.
//   - Dial: a client retrying a refused dial waits 100ms, doubling up to
//     5s, plus up to 25% jitter so many clients started together spread out.
//
// # Jitter
//
//	actual_delay = base_delay + random(0, base_delay * jitter)
package connection
