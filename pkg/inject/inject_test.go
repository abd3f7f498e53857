package inject

import (
	"context"
	"testing"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface {
	Greet() string
}

type english struct{}

func (english) Greet() string { return "hello" }

func TestNew(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	id := uuid.NewString()

	container, err := New(id, logger)
	require.NoError(t, err)
	assert.Equal(t, id, container.GetContainerID())
	require.NoError(t, ectoinject.RegisterInstance[greeter](container, english{}))

	ctx, err := ectoinject.SetActiveContainer(context.Background(), id)
	require.NoError(t, err)

	_, got, err := ectoinject.GetContext[greeter](ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Greet())

	t.Run("missing dependency", func(t *testing.T) {
		_, _, err := ectoinject.GetContext[ectologger.Logger](ctx)
		assert.Error(t, err)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := New(id, logger)
		assert.Error(t, err)
	})
}
