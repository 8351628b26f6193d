package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatError_UnwrapsToErrFormatStructure(t *testing.T) {
	err := NewFormatError("png", "bad signature")
	require.ErrorIs(t, err, ErrFormatStructure)
	require.Contains(t, err.Error(), "png")
	require.Contains(t, err.Error(), "bad signature")
}

func TestSentinelsAreDistinct(t *testing.T) {
	all := []error{ErrIo, ErrUnexpectedEof, ErrUnknownFormat, ErrFormatStructure, ErrDuplicateTags, ErrInvalidTag, ErrTagCodec}

	for i, a := range all {
		for j, b := range all {
			if i == j {
				continue
			}

			require.False(t, errors.Is(a, b), "sentinel %d should not match sentinel %d", i, j)
		}
	}
}
