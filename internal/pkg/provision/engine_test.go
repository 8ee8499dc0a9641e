package provision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayhub-deploy-cli/pkg/utils"
)

func TestInstallContainerEngineSkipsWhenPresent(t *testing.T) {
	r := newFakeRunner()
	r.on("docker version", ok("27.1.1"))

	err := newTestActions().InstallContainerEngine(r)

	require.NoError(t, err)
	assert.Zero(t, r.executedMatching("get-docker"), "已安装时不应执行安装脚本")
	assert.Zero(t, r.executedMatching("systemctl"))
}

func TestInstallComposePluginSkipsWhenPresent(t *testing.T) {
	r := newFakeRunner()
	r.on("docker compose version", ok("2.29.0"))

	err := newTestActions().InstallComposePlugin(r)

	require.NoError(t, err)
	assert.Zero(t, r.executedMatching("apt-get"))
}

func TestInstallComposePluginInstallsAndVerifies(t *testing.T) {
	r := newFakeRunner()
	r.on("docker compose version", fail(1, ""), ok("2.29.0"))

	err := newTestActions().InstallComposePlugin(r)

	require.NoError(t, err)
	assert.Equal(t, 1, r.executedMatching("apt-get install -y docker-compose-plugin"))
}

func TestInstallComposePluginFailsWhenStillMissing(t *testing.T) {
	r := newFakeRunner()
	r.on("docker compose version", fail(1, ""))

	err := newTestActions().InstallComposePlugin(r)

	require.Error(t, err)
	assert.Equal(t, utils.CodeComposePlugin, utils.ExitCode(err))
}
