package runner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangelabs/simrange/runner"
	"github.com/rangelabs/simrange/statemachine"
	"github.com/rangelabs/simrange/statemachine/smtest"
)

type stubFactory string

func (f stubFactory) Name() string {
	return string(f)
}

func (f stubFactory) Build(_ []byte) (*statemachine.Definition, error) {
	return smtest.LinearDefinition(string(f), "a", "b")
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	t.Parallel()

	reg := runner.NewRegistry()
	require.NoError(t, reg.Register(stubFactory("web_browser")))
	require.NoError(t, reg.Register(stubFactory("ssh_attacker")))

	factory, err := reg.Lookup("web_browser")
	require.NoError(t, err)
	assert.Equal(t, "web_browser", factory.Name())

	def, err := factory.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, "web_browser", def.Name())

	assert.Equal(t, []string{"ssh_attacker", "web_browser"}, reg.Names())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	reg := runner.NewRegistry()
	require.NoError(t, reg.Register(stubFactory("web_browser")))

	err := reg.Register(stubFactory("web_browser"))
	require.ErrorIs(t, err, runner.ErrDuplicateFactory)
}

func TestRegistryUnknownProfile(t *testing.T) {
	t.Parallel()

	reg := runner.NewRegistry()
	require.NoError(t, reg.Register(stubFactory("web_browser")))

	_, err := reg.Lookup("mail_user")
	require.ErrorIs(t, err, runner.ErrUnknownProfile)
	assert.Contains(t, err.Error(), "web_browser", "the error lists what is registered")
}
