package synth

import(
	"errors"
)

// Preconditions, checked by Prepare before any row is read.
var(
	ErrMissingWavelengths          = errors.New("hypercube has no spectral calibration")
	ErrEmptySpectralOverlap        = errors.New("response curves do not overlap the hypercube's bands")
	ErrInsufficientSpectralSamples = errors.New("fewer than two bands inside the response curves' domain")
	ErrDegenerateResponse          = errors.New("response curve integrates to zero")
	ErrReferenceMismatch           = errors.New("reference spectrum does not match the hypercube's bands")
)

// ErrReadFailure wraps any error the hypercube returns mid-run. The
// run is abandoned and no image is produced.
var ErrReadFailure = errors.New("hypercube read failed")
