package voice

import "errors"

// ErrSynthesis is wrapped by Speaker implementations when text could not be
// turned into audio. Gate logs it and carries on.
var ErrSynthesis = errors.New("voice: synthesis failed")
