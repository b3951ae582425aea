package constants

// Source records where a stored trial came from.
type Source string

const (
	// SourceHuman marks trials posted by the experiment client.
	SourceHuman Source = "human"

	// SourceAgent marks trials played by a simulated RL agent.
	SourceAgent Source = "agent"
)

// Valid returns true if the source is a recognized value.
func (s Source) Valid() bool {
	switch s {
	case SourceHuman, SourceAgent:
		return true
	}
	return false
}

// String returns the string representation of the source.
func (s Source) String() string {
	return string(s)
}
