package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testValidator() *Validator {
	policy := NewPolicy(
		[]string{"image/jpeg", "image/png", "application/pdf", "application/zip"},
		[]string{"jpg", "jpeg", "png", "pdf", "zip"},
		1024,
	)
	return NewValidator(policy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		size        int64
		wantErr     error
	}{
		{
			name:        "valid jpeg",
			filename:    "photo.jpg",
			contentType: "image/jpeg",
			size:        512,
		},
		{
			name:        "valid pdf with uppercase extension",
			filename:    "report.PDF",
			contentType: "application/pdf",
			size:        100,
		},
		{
			name:        "empty filename",
			filename:    "",
			contentType: "image/jpeg",
			size:        10,
			wantErr:     ErrInvalidSubmission,
		},
		{
			name:        "empty file",
			filename:    "photo.jpg",
			contentType: "image/jpeg",
			size:        0,
			wantErr:     ErrInvalidSubmission,
		},
		{
			name:        "over size limit",
			filename:    "photo.jpg",
			contentType: "image/jpeg",
			size:        1025,
			wantErr:     ErrSizeExceeded,
		},
		{
			name:        "missing content type",
			filename:    "photo.jpg",
			contentType: "",
			size:        10,
			wantErr:     ErrUnsupportedMimeType,
		},
		{
			name:        "disallowed content type",
			filename:    "page.html",
			contentType: "text/html",
			size:        10,
			wantErr:     ErrUnsupportedMimeType,
		},
		{
			name:        "no extension",
			filename:    "README",
			contentType: "application/pdf",
			size:        10,
			wantErr:     ErrInvalidFilename,
		},
		{
			name:        "trailing dot",
			filename:    "archive.",
			contentType: "application/pdf",
			size:        10,
			wantErr:     ErrInvalidFilename,
		},
		{
			name:        "extension not allowed",
			filename:    "animation.gif",
			contentType: "image/jpeg",
			size:        10,
			wantErr:     ErrDisallowedExtension,
		},
		{
			name:        "extension mime mismatch",
			filename:    "photo.png",
			contentType: "image/jpeg",
			size:        10,
			wantErr:     ErrMimeExtensionMismatch,
		},
		{
			name:        "jpeg alias matches jpg table entry",
			filename:    "photo.jpeg",
			contentType: "image/jpeg",
			size:        10,
		},
		{
			name:        "unlisted extension skips consistency table",
			filename:    "bundle.zip",
			contentType: "application/zip",
			size:        10,
		},
	}

	v := testValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.filename, tt.contentType, tt.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateOrderShortCircuits(t *testing.T) {
	// A submission violating both the size limit and the mime allow-list
	// must report the size failure, which is checked first.
	v := testValidator()
	err := v.Validate("page.html", "text/html", 4096)
	assert.ErrorIs(t, err, ErrSizeExceeded)
}

func TestPolicyExtensionNormalization(t *testing.T) {
	policy := NewPolicy([]string{"text/plain"}, []string{".TXT"}, 100)
	v := NewValidator(policy)
	assert.NoError(t, v.Validate("notes.txt", "text/plain", 10))
}
