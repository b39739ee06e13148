package source

// Kind tags the outcome of one fetch attempt.
type Kind int

const (
	KindGot Kind = iota
	KindEmpty
	KindNotFound
	KindTransient
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindGot:
		return "got"
	case KindEmpty:
		return "empty"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of Fetch. Only the fields relevant to Kind
// are populated.
type Result struct {
	Kind        Kind
	Bytes       []byte
	ContentType string
	SourceName  string
	Reason      string
}

// Got wraps a successfully retrieved tile payload that has passed validation.
func Got(bytes []byte, contentType, sourceName string) Result {
	return Result{Kind: KindGot, Bytes: bytes, ContentType: contentType, SourceName: sourceName}
}

// Empty represents a payload that is zero-length or a known-blank tile.
func Empty() Result { return Result{Kind: KindEmpty} }

// NotFound represents an authoritative 404 or archive miss.
func NotFound() Result { return Result{Kind: KindNotFound} }

// Transient represents a failure the retry policy should retry.
func Transient(reason string) Result { return Result{Kind: KindTransient, Reason: reason} }

// Invalid represents a payload present but failing validation, or a
// non-retryable 4xx status.
func Invalid(reason string) Result { return Result{Kind: KindInvalid, Reason: reason} }

// Retryable reports whether the retry policy should be consulted for this
// outcome.
func (r Result) Retryable() bool { return r.Kind == KindTransient }

// Terminal reports whether this outcome ends the attempt chain for the
// current source without advancing to the next attempt (it may still
// advance fallback to the next source).
func (r Result) Terminal() bool { return r.Kind != KindTransient }
