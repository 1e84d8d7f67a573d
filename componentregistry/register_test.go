package componentregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/errors"
)

func TestRegister_AllKinds(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	assert.ElementsMatch(t, []string{
		"passthrough", "filter", "delay", "fail",
		"log", "file", "http-post", "complete", "catch",
	}, registry.ListKinds())
}

func TestRegister_Twice(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	err := Register(registry)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegister_NilRegistry(t *testing.T) {
	err := Register(nil)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}
