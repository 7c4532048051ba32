package avatar

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultMaxBytes caps avatar uploads.
const DefaultMaxBytes int64 = 3_000_000

// DefaultExtensions are the accepted upload filename extensions.
var DefaultExtensions = []string{"png", "jpg", "jpeg"}

// Policy filters uploads before they reach the transcoder.
type Policy struct {
	MaxBytes   int64
	Extensions []string
}

// NewPolicy returns a policy with defaults applied.
func NewPolicy(maxBytes int64) Policy {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return Policy{MaxBytes: maxBytes, Extensions: DefaultExtensions}
}

// Check validates the upload filename and size.
func (p Policy) Check(filename string, size int64) error {
	if size > p.MaxBytes {
		return fmt.Errorf("file must be at most %d bytes", p.MaxBytes)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	for _, allowed := range p.Extensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("file must be png or jpg")
}
