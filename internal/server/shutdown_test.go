package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownHooks_RunInOrder(t *testing.T) {
	var order []string

	hooks := &ShutdownHooks{}
	hooks.Add("first", func() error {
		order = append(order, "first")
		return nil
	})
	hooks.AddContext("second", func(context.Context) error {
		order = append(order, "second")
		return nil
	})

	hooks.Execute(context.Background())

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestShutdownHooks_FailureDoesNotStopExecution(t *testing.T) {
	var order []string

	hooks := &ShutdownHooks{}
	hooks.Add("failing", func() error {
		order = append(order, "failing")
		return errors.New("hook failure")
	})
	hooks.Add("after", func() error {
		order = append(order, "after")
		return nil
	})

	hooks.Execute(context.Background())

	assert.Equal(t, []string{"failing", "after"}, order)
}

func TestShutdownHooks_NilHookIgnored(t *testing.T) {
	hooks := &ShutdownHooks{}
	hooks.Add("nil hook", nil)
	hooks.AddContext("nil context hook", nil)

	assert.Empty(t, hooks.hooks)

	// executing with no hooks is a no-op
	hooks.Execute(context.Background())
}
