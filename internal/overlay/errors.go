package overlay

import "codeberg.org/mutker/unabara/internal/errors"

const (
	ErrTemplate = errors.ErrorCode("overlay_template_failed")
	ErrFont     = errors.ErrorCode("overlay_font_failed")
)
