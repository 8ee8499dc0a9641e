package artifact

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"relayhub-deploy-cli/internal/model"
)

// chdir is t.Chdir from Go 1.24, spelled out for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}

func TestFileNameDerivesFromHost(t *testing.T) {
	assert.Equal(t, "instance-203-0-113-10.yml", FileName("203.0.113.10"))
	assert.Equal(t, "instance-relay-example-com.yml", FileName("Relay.Example.Com"))
}

func TestBuildAndWriteRoundTrip(t *testing.T) {
	chdir(t, t.TempDir())

	plan := &model.DeployPlan{
		Host:           "203.0.113.10",
		Port:           2222,
		Username:       "root",
		PrivateKeyPath: "/home/op/.ssh/id_ed25519",
	}
	st := &model.DeploymentState{
		Instance: "203-0-113-10",
		Facts: model.DeploymentFacts{
			Principal: model.PrincipalFacts{Username: "relayhub", UID: 1500, GID: 1500},
			Image:     "relayhub/relayhub:main",
			Branch:    "main",
			Onboarded: true,
		},
	}

	path, err := Write(Build(plan, st))
	require.NoError(t, err)
	assert.Equal(t, "instance-203-0-113-10.yml", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got model.InstanceArtifact
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "203-0-113-10", got.Instance)
	assert.Equal(t, "203.0.113.10", got.Host)
	assert.Equal(t, 2222, got.Port)
	assert.Equal(t, "relayhub", got.Principal)
	assert.Equal(t, "relayhub/relayhub:main", got.Image)
	assert.True(t, got.Status.Provisioned)
	assert.True(t, got.Status.OnboardingCompleted)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestWriteRecordsIncompleteOnboarding(t *testing.T) {
	chdir(t, t.TempDir())

	plan := &model.DeployPlan{Host: "203.0.113.10", Port: 22, Username: "root"}
	st := &model.DeploymentState{
		Instance: "203-0-113-10",
		Facts:    model.DeploymentFacts{Image: "relayhub/relayhub:main"},
	}

	path, err := Write(Build(plan, st))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "onboardingCompleted: false")
}
