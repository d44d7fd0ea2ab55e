package validation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSubmission     = errors.New("invalid submission")
	ErrSizeExceeded          = errors.New("file size exceeds limit")
	ErrUnsupportedMimeType   = errors.New("unsupported mime type")
	ErrInvalidFilename       = errors.New("invalid filename")
	ErrDisallowedExtension   = errors.New("extension not allowed")
	ErrMimeExtensionMismatch = errors.New("extension does not match declared mime type")
)

// mimeByExtension maps known extensions to their canonical MIME type.
// Extensions outside this table are not checked for consistency.
var mimeByExtension = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"txt":  "text/plain",
}

// Policy is the immutable validation configuration applied to every
// incoming submission.
type Policy struct {
	allowedMimeTypes  map[string]struct{}
	allowedExtensions map[string]struct{}
	maxSizeBytes      int64
}

// NewPolicy builds a Policy from the configured allow-lists. Extensions are
// matched case-insensitively, so they are lowered here once.
func NewPolicy(mimeTypes, extensions []string, maxSizeBytes int64) Policy {
	p := Policy{
		allowedMimeTypes:  make(map[string]struct{}, len(mimeTypes)),
		allowedExtensions: make(map[string]struct{}, len(extensions)),
		maxSizeBytes:      maxSizeBytes,
	}
	for _, m := range mimeTypes {
		p.allowedMimeTypes[m] = struct{}{}
	}
	for _, e := range extensions {
		p.allowedExtensions[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}
	return p
}

// MaxSizeBytes returns the configured upload size limit.
func (p Policy) MaxSizeBytes() int64 {
	return p.maxSizeBytes
}

// Validator checks incoming submissions against a Policy. It is pure
// inspection of the declared name, content type and size; it never reads
// file content.
type Validator struct {
	policy Policy
}

func NewValidator(policy Policy) *Validator {
	return &Validator{policy: policy}
}

// Validate runs the policy checks in order, returning the first failure.
func (v *Validator) Validate(name, contentType string, size int64) error {
	if name == "" {
		return fmt.Errorf("%w: filename is empty", ErrInvalidSubmission)
	}
	if size <= 0 {
		return fmt.Errorf("%w: empty file not allowed", ErrInvalidSubmission)
	}
	if size > v.policy.maxSizeBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrSizeExceeded, size, v.policy.maxSizeBytes)
	}
	if contentType == "" {
		return fmt.Errorf("%w: no content type declared", ErrUnsupportedMimeType)
	}
	if _, ok := v.policy.allowedMimeTypes[contentType]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedMimeType, contentType)
	}

	ext, ok := extension(name)
	if !ok {
		return fmt.Errorf("%w: %q has no extension", ErrInvalidFilename, name)
	}
	if _, ok := v.policy.allowedExtensions[ext]; !ok {
		return fmt.Errorf("%w: %q", ErrDisallowedExtension, ext)
	}

	if canonical, known := mimeByExtension[ext]; known && contentType != canonical {
		return fmt.Errorf("%w: %q declared as %q, expected %q", ErrMimeExtensionMismatch, name, contentType, canonical)
	}
	return nil
}

// extension returns the lowercased substring after the last dot, reporting
// false when the name has no extension at all.
func extension(name string) (string, bool) {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return "", false
	}
	return strings.ToLower(name[i+1:]), true
}
