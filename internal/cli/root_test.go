package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTemplatesShow(t *testing.T) {
	var env string
	factory := func(environment string) (*Backend, error) {
		env = environment
		return newTestBackend(t), nil
	}

	cmd := NewRootCommand(factory)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"templates", "show", "sla", "--env", "test"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "test", env)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "SLA", decoded["name"])
}

func TestRunRequiresTemplate(t *testing.T) {
	cmd := NewRootCommand(func(string) (*Backend, error) {
		return nil, errors.New("should not be called")
	})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template")
}
