package main

import (
	"context"
	"testing"

	"github.com/tj/assert"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := newRootCommand()

	for _, name := range []string{"serve", "poll"} {
		sub, _, err := cmd.Find([]string{name})
		assert.Nil(t, err)
		assert.Equal(t, name, sub.Name())
	}

	assert.NotNil(t, cmd.PersistentFlags().Lookup("env-file"))
}

func TestRootCommandInvalidConfig(t *testing.T) {
	t.Setenv("API_KEY", "")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"poll"})

	err := cmd.ExecuteContext(context.Background())
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestRootCommandMissingEnvFile(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"poll", "--env-file", "does-not-exist.env"})

	err := cmd.ExecuteContext(context.Background())
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "failed to load env file")
}
