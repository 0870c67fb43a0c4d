package shaft

// Impulse values. Anything else is rejected by Validate.
const (
	Left  = -1
	Right = 1
)

// Impulses is the cyclic sequence of lateral steps, addressed by the
// driver phase.
type Impulses []int

// At returns the impulse for a driver phase, wrapping by length.
func (s Impulses) At(phase int) int {
	return s[phase%len(s)]
}

// Next advances a driver phase by one step.
func (s Impulses) Next(phase int) int {
	return (phase + 1) % len(s)
}

// Validate checks the sequence is non-empty and only holds Left/Right.
func (s Impulses) Validate() error {
	if len(s) == 0 {
		return invalidf("impulse sequence is empty")
	}
	for i, v := range s {
		if v != Left && v != Right {
			return invalidf("impulse %d is %d, want -1 or +1", i, v)
		}
	}
	return nil
}
