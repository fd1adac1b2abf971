package archive

import "fmt"

// Kind classifies the failures the engine reports to callers (spec.md §7).
type Kind int

const (
	// KindInvalidArchive: bad magic, malformed header, non-monotonic
	// section offsets.
	KindInvalidArchive Kind = iota
	// KindMalformed: a record failed to decode while serving a request.
	KindMalformed
	// KindNotFound: no FDE/TDE for the supplied file or tag number/name.
	KindNotFound
	// KindExhausted: max directory/lookup slots reached with no further
	// resize possible.
	KindExhausted
	// KindTooLong: a name exceeds its on-disk length limit.
	KindTooLong
	// KindIoError: a host filesystem failure against the backing file.
	KindIoError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArchive:
		return "invalid archive"
	case KindMalformed:
		return "malformed"
	case KindNotFound:
		return "not found"
	case KindExhausted:
		return "exhausted"
	case KindTooLong:
		return "too long"
	case KindIoError:
		return "io error"
	default:
		return "unknown"
	}
}

// Error is the engine's single error type. Every failure the engine
// returns is an *Error so callers can branch on Kind via errors.As, or
// compare against the Err* sentinels below via errors.Is (Error.Is ignores
// Msg/Err, matching only Kind) — the same "one typed error, many causes"
// shape as the teacher's StatusError (internal/diskimage/d64_write.go).
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("archive: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	if e.Msg != "" {
		return fmt.Sprintf("archive: %s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("archive: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, archive.ErrNotFound) regardless of the message
// or wrapped cause carried by the specific instance.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// errNeedsResize is an internal-only signal from a section's allocator
// that it found no room and the caller should trigger Resize and retry
// exactly once (spec.md §4.2's "retried once" failure class). It never
// escapes the archive package.
var errNeedsResize = fmt.Errorf("archive: section needs resize")

// Sentinel values for errors.Is comparisons. Only Kind is significant.
var (
	ErrInvalidArchive = &Error{Kind: KindInvalidArchive}
	ErrMalformed      = &Error{Kind: KindMalformed}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrExhausted      = &Error{Kind: KindExhausted}
	ErrTooLong        = &Error{Kind: KindTooLong}
	ErrIoError        = &Error{Kind: KindIoError}
)
