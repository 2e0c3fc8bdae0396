package delivery

import "errors"

// Transport errors recognised by the Sender. Transports wrap these so that
// errors.Is can classify a failed delivery.
var (
	// ErrMalformedMarkup means the transport could not parse the
	// formatting entities in the text.
	ErrMalformedMarkup = errors.New("delivery: malformed markup")

	// ErrMessageTooLong means the text exceeds the transport's size limit.
	ErrMessageTooLong = errors.New("delivery: message too long")
)

// ErrorKind is the category of a transport failure.
type ErrorKind int

// Transport failure categories.
const (
	KindUnknown ErrorKind = iota
	KindMalformedMarkup
	KindMessageTooLong
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformedMarkup:
		return "malformed_markup"
	case KindMessageTooLong:
		return "too_long"
	default:
		return "unknown"
	}
}

// Classify maps a transport error to its category.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrMalformedMarkup):
		return KindMalformedMarkup
	case errors.Is(err, ErrMessageTooLong):
		return KindMessageTooLong
	default:
		return KindUnknown
	}
}
