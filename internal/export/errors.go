package export

import "codeberg.org/mutker/unabara/internal/errors"

const (
	ErrInvalidJob    = errors.ErrInvalidArgument
	ErrBusy          = errors.ErrResourceBusy
	ErrCanceled      = errors.ErrCanceled
	ErrRender        = errors.ErrorCode("export_render_failed")
	ErrWrite         = errors.ErrorCode("export_write_failed")
	ErrEncoder       = errors.ErrorCode("export_encoder_failed")
	ErrUnknownCodec  = errors.ErrorCode("export_unknown_codec")
	ErrEncoderAbsent = errors.ErrorCode("export_encoder_not_found")
)
