package enginerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Wrap_nilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil))
}

func Test_Wrap_preservesErrorsIsForSentinels(t *testing.T) {
	wrapped := fmt.Errorf("decode foo.wav: %w", ErrNotFound)
	ui := Wrap(wrapped)
	assert.True(t, errors.Is(ui, ErrNotFound))
	assert.Equal(t, wrapped.Error(), ui.Error())
}

func Test_UIError_UnwrapReturnsCause(t *testing.T) {
	cause := errors.New("boom")
	ui := Wrap(cause)
	assert.Equal(t, cause, ui.Unwrap())
}
