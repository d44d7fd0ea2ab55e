package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateFile    = errors.New("file already exists")
	ErrNotFound         = errors.New("file not found")
	ErrBackendWrite     = errors.New("backend write failure")
	ErrBackendRead      = errors.New("backend read failure")
	ErrMetadataCommit   = errors.New("metadata commit failure")
	ErrConsistencyFault = errors.New("metadata references missing or corrupt blob")
)

// BatchItemError records the failure of one submission within a batch.
type BatchItemError struct {
	Filename string
	Err      error
}

// BatchError aggregates per-item failures from StoreMultiple. Items that
// succeeded stay committed; this error only itemizes the ones that did not.
type BatchError struct {
	Items []BatchItemError
}

func (e *BatchError) Error() string {
	parts := make([]string, len(e.Items))
	for i, item := range e.Items {
		parts[i] = fmt.Sprintf("%s: %v", item.Filename, item.Err)
	}
	return "upload errors: " + strings.Join(parts, "; ")
}
