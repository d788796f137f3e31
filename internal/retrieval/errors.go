package retrieval

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyQuery is returned before any search is issued for a blank query.
var ErrEmptyQuery = errors.New("query is empty")

// UnknownCollectionError names the requested collections that have no index.
type UnknownCollectionError struct {
	Names []string
}

func (e *UnknownCollectionError) Error() string {
	return fmt.Sprintf("unknown collection(s): %s", strings.Join(e.Names, ", "))
}

// CollectionUnavailableError wraps a failed or timed out search of one collection.
type CollectionUnavailableError struct {
	Collection string
	Err        error
}

func (e *CollectionUnavailableError) Error() string {
	return fmt.Sprintf("collection %s unavailable: %v", e.Collection, e.Err)
}

func (e *CollectionUnavailableError) Unwrap() error { return e.Err }

// RerankError is returned when reranking fails and fallback is off.
type RerankError struct {
	Collection string
	Err        error
}

func (e *RerankError) Error() string {
	return fmt.Sprintf("rerank of %s failed: %v", e.Collection, e.Err)
}

func (e *RerankError) Unwrap() error { return e.Err }
