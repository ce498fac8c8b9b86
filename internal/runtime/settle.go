package runtime

import "fmt"

// DefaultMaxPasses is the default Settle pass quota. Stabilization is
// fixed-point-by-repetition; the quota converts a runaway reactive loop
// (a handler that keeps generating fresh work every wave) into a
// structured error instead of spinning forever.
const DefaultMaxPasses = 64

// Settle calls Update repeatedly until it reports no work, returning
// the number of passes that performed work.
//
// Fails with *PassesExceededError once the pass quota is hit; the
// runtime is left in whatever state the completed passes produced.
func (rt *Runtime) Settle() (int, error) {
	passes := 0
	for {
		worked, err := rt.Update()
		if err != nil {
			return passes, err
		}
		if !worked {
			return passes, nil
		}
		passes++
		if passes >= rt.maxPasses {
			return passes, &PassesExceededError{Passes: passes, Limit: rt.maxPasses}
		}
	}
}

// PassesExceededError is returned when Settle exceeds its pass quota,
// indicating a reactive loop that never reaches a fixed point.
type PassesExceededError struct {
	Passes int
	Limit  int
}

// Error implements the error interface.
func (e *PassesExceededError) Error() string {
	return fmt.Sprintf("settle exceeded max passes (%d >= %d): reactive loop never stabilized", e.Passes, e.Limit)
}
