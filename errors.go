package springseq

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrTransport marks network, timeout and non-2xx failures. Retryable.
	ErrTransport = errors.New("transport error")
	// ErrMalformedResponse marks a success body that could not be decoded. Not retried.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrUnauthorized marks a rejected credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoSequence marks a generation request whose reply held no row table.
	ErrNoSequence = errors.New("no sequence in response")
	// ErrCancelled marks an operation stopped by Cancel or a superseding dispatch.
	ErrCancelled = errors.New("operation cancelled")
)

// DefaultGenerationFailure is reported when no error phrase can be mined from a reply.
const DefaultGenerationFailure = "Failed to generate sequence"

var errorPhrasePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)error["']?\s*:\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)message["']?\s*:\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)ERROR:\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?i)Exception:\s*(.+?)(?:\n|$)`),
}

// ExtractErrorMessage mines a best-effort error message from a reply.
// The first matching phrase pattern wins; no match returns "".
func ExtractErrorMessage(text string) string {
	for _, re := range errorPhrasePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
