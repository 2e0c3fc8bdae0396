package delivery

// Outcome is the result of sending one segment.
type Outcome int

// Segment outcomes.
const (
	OutcomeFailed Outcome = iota
	OutcomeFormatted
	OutcomePlain
	OutcomeTruncated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFormatted:
		return "formatted"
	case OutcomePlain:
		return "plain"
	case OutcomeTruncated:
		return "truncated"
	default:
		return "failed"
	}
}

// Delivered reports whether some text reached the chat.
func (o Outcome) Delivered() bool {
	return o != OutcomeFailed
}

// Terminal reports whether the remaining segments of the batch must be
// dropped. A truncated segment was transmitted but ends the batch.
func (o Outcome) Terminal() bool {
	return o == OutcomeFailed || o == OutcomeTruncated
}
