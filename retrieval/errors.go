package retrieval

import "fmt"

// ProviderError reports that the embedding or vector provider could not be
// reached or refused the request. Callers treat it as zero passages.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("retrieval %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}
