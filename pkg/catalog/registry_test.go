package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/llm-guardrails/pkg/catalog"
	"github.com/run-bigpig/llm-guardrails/pkg/guardrails"
	"github.com/run-bigpig/llm-guardrails/pkg/llm"
)

func promptFactory(name, prompt string) catalog.Factory {
	return func(args map[string]interface{}) (guardrails.Guardrail, error) {
		return guardrails.NewPromptGuardrailFromString(name, prompt, args)
	}
}

func TestRegisterAndLoad(t *testing.T) {
	registry := catalog.NewRegistry()
	require.NoError(t, registry.Register("safety", promptFactory("safety", "Be safe.")))
	require.NoError(t, registry.Register("tone", promptFactory("tone", "Be polite.")))

	loaded, err := registry.Load([]string{"tone", "safety"}, nil)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "tone", loaded[0].Name())
	assert.Equal(t, "safety", loaded[1].Name())
}

func TestRegisterDuplicateFails(t *testing.T) {
	registry := catalog.NewRegistry()
	require.NoError(t, registry.Register("safety", promptFactory("safety", "x")))

	err := registry.Register("safety", promptFactory("safety", "y"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisterRejectsNilFactoryAndEmptyName(t *testing.T) {
	registry := catalog.NewRegistry()
	assert.Error(t, registry.Register("bad", nil))
	assert.Error(t, registry.Register("", promptFactory("x", "y")))
}

func TestLoadUnknownName(t *testing.T) {
	registry := catalog.NewRegistry()
	require.NoError(t, registry.Register("safety", promptFactory("safety", "x")))

	_, err := registry.Load([]string{"missing"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown guardrail "missing"`)
	assert.Contains(t, err.Error(), "safety")
}

func TestLoadFactoryErrorIsAttributed(t *testing.T) {
	registry := catalog.NewRegistry()
	sentinel := errors.New("bad arguments")
	require.NoError(t, registry.Register("fussy", func(args map[string]interface{}) (guardrails.Guardrail, error) {
		return nil, sentinel
	}))

	_, err := registry.Load([]string{"fussy"}, map[string]interface{}{"level": "max"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), `"fussy"`)
	assert.Contains(t, err.Error(), "level")
}

func TestCompose(t *testing.T) {
	registry := catalog.NewRegistry()
	require.NoError(t, registry.Register("one", promptFactory("one", "first")))
	require.NoError(t, registry.Register("two", promptFactory("two", "second")))

	composite, err := registry.Compose([]string{"one", "two"}, nil)
	require.NoError(t, err)

	request := &llm.ChatRequest{Messages: []llm.Message{{Role: "user", Content: "hi"}}}
	guarded, err := composite.Apply(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, guarded.AppliedGuardrails)
}

func TestComposeEmptyFails(t *testing.T) {
	registry := catalog.NewRegistry()
	_, err := registry.Compose(nil, nil)
	assert.Error(t, err)
}

func TestListAvailableAndClear(t *testing.T) {
	registry := catalog.NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, registry.Register(name, promptFactory(name, name)))
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, registry.ListAvailable())

	registry.Clear()
	assert.Empty(t, registry.ListAvailable())

	// Names are reusable after a clear
	assert.NoError(t, registry.Register("alpha", promptFactory("alpha", "again")))
}

func TestRegistryIsIndependentPerInstance(t *testing.T) {
	first := catalog.NewRegistry()
	second := catalog.NewRegistry()

	require.NoError(t, first.Register("only-here", promptFactory("only-here", "x")))
	_, err := second.Load([]string{"only-here"}, nil)
	assert.Error(t, err)
}

func TestLoadManySameArgs(t *testing.T) {
	registry := catalog.NewRegistry()
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("g%d", i)
		require.NoError(t, registry.Register(name, promptFactory(name, "Level: {{.level}}")))
	}

	loaded, err := registry.Load([]string{"g0", "g1", "g2"}, map[string]interface{}{"level": "high"})
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	guarded, err := loaded[0].Apply(context.Background(), &llm.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Level: high", guarded.ModifiedRequest.Messages[0].Content)
}
