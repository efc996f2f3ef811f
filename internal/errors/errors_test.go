package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	f := errors.New()
	base := f.Wrap(errors.ErrTimeout, fmt.Errorf("read took too long"))
	wrapped := f.Wrap(errors.ErrOperationFailed, base)
	joined := errors.Join(f.New(errors.ErrInvalidArgument), fmt.Errorf("context: %w", wrapped))

	assert.True(t, errors.HasCode(base, errors.ErrTimeout))
	assert.True(t, errors.HasCode(wrapped, errors.ErrTimeout))
	assert.True(t, errors.HasCode(joined, errors.ErrTimeout))
	assert.True(t, errors.HasCode(joined, errors.ErrInvalidArgument))
	assert.False(t, errors.HasCode(joined, errors.ErrPermissionDenied))
	assert.False(t, errors.HasCode(nil, errors.ErrTimeout))
}

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "custom", f.WithMessage(errors.ErrInternal, "custom").Error())
	assert.Contains(t, f.WithData(errors.ErrInvalidArgument, 42).Error(), "42")

	var appErr errors.Error
	assert.True(t, errors.As(f.Wrap(errors.ErrTimeout, fmt.Errorf("x")), &appErr))
	assert.Equal(t, errors.ErrTimeout, appErr.Code())
}

func TestAsCoded(t *testing.T) {
	inner := errors.New().Wrap(errors.ErrTimeout, fmt.Errorf("stuck"))

	coded, ok := errors.AsCoded(fmt.Errorf("tick: %w", inner))
	assert.True(t, ok)
	assert.Equal(t, errors.ErrTimeout, coded.Code())

	_, ok = errors.AsCoded(fmt.Errorf("plain"))
	assert.False(t, ok)

	_, ok = errors.AsCoded(nil)
	assert.False(t, ok)
}
