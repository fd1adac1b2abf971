package record

import "errors"

// ErrMalformed is returned by a decoder when a record's declared size does
// not fit the bytes actually available, or a count field is out of range.
var ErrMalformed = errors.New("record: malformed")

// ErrTooLong is returned when encoding a name/field longer than the wire
// format allows.
var ErrTooLong = errors.New("record: field too long")
