package state

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/model"
	"relayhub-deploy-cli/internal/pkg/logger"
	"relayhub-deploy-cli/internal/pkg/provision"
	"relayhub-deploy-cli/pkg/utils"
)

func newTestMachine(f *fakeHost) *Machine {
	log := logger.NewNopLogger()
	return NewMachine(provision.NewActions(config.LoadConfig(), log), NewStore(f, log), log)
}

func testPlan() *model.DeployPlan {
	return &model.DeployPlan{
		Host:     "203.0.113.10",
		Port:     22,
		Username: "root",
		Branch:   "main",
		Instance: "203-0-113-10",
	}
}

// 统计某个时间点之后执行的命令里包含子串的条数
func executedSince(f *fakeHost, since int, substr string) int {
	count := 0
	for _, cmd := range f.commands[since:] {
		if strings.Contains(cmd, substr) {
			count++
		}
	}
	return count
}

func TestMachineFreshRunCompletesAllPhases(t *testing.T) {
	f := satisfiedHost()

	st, err := newTestMachine(f).Run(f, testPlan())

	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.AllComplete())
	assert.Equal(t, "relayhub/relayhub:main", st.Facts.Image)
	assert.Equal(t, 1500, st.Facts.Principal.UID)
	assert.True(t, st.Facts.Onboarded)
	// 全部成功后远端状态文件必须删除
	assert.NotContains(t, f.files, config.StatePath)
}

func TestMachineSkipInteractiveStillReachesServiceStart(t *testing.T) {
	f := satisfiedHost()
	// 向导从未跑过
	delete(f.files, config.OnboardingMarker)

	plan := testPlan()
	plan.SkipInteractive = true
	st, err := newTestMachine(f).Run(f, plan)

	require.NoError(t, err)
	assert.True(t, st.AllComplete())
	assert.False(t, st.Facts.Onboarded)
	assert.Empty(t, f.interactives, "跳过向导时不应有交互会话")
	assert.Equal(t, 1, f.executedMatching("up -d --force-recreate"))
}

func TestMachineFailurePersistsFailedPhase(t *testing.T) {
	f := newFakeHost()
	f.on("docker image inspect", fail(1, ""))
	f.on("test -d", fail(1, ""))
	f.on("git clone --branch", fail(128, "unable to access"))
	f.satisfy()

	st, err := newTestMachine(f).Run(f, testPlan())

	require.Error(t, err)
	assert.Equal(t, utils.CodeImageBuild, utils.ExitCode(err))
	require.NotNil(t, st)
	assert.Equal(t, model.PhaseFailed, st.PhaseStatusOf(model.PhaseImageBuild))

	// 失败状态必须已经落盘，崩溃后据此续跑
	require.Contains(t, f.files, config.StatePath)
	var persisted model.DeploymentState
	require.NoError(t, json.Unmarshal([]byte(f.files[config.StatePath]), &persisted))
	assert.Equal(t, model.PhaseComplete, persisted.PhaseStatusOf(model.PhaseDirectories))
	assert.Equal(t, model.PhaseFailed, persisted.PhaseStatusOf(model.PhaseImageBuild))
	assert.Equal(t, model.PhaseImageBuild, persisted.LastOrdinal)
}

func TestMachineResumeSkipsCompletedAndRetriesFailed(t *testing.T) {
	f := newFakeHost()
	f.on("docker image inspect", fail(1, ""))
	f.on("test -d", fail(1, ""))
	// 第一次克隆失败，重试成功
	f.on("git clone --branch", fail(128, "unable to access"), ok(""))
	f.satisfy()

	m := newTestMachine(f)
	first, err := m.Run(f, testPlan())
	require.Error(t, err)

	mark := len(f.commands)
	second, err := m.Run(f, testPlan())

	require.NoError(t, err)
	assert.Equal(t, first.DeploymentID, second.DeploymentID, "续跑延续同一次部署")
	assert.True(t, second.AllComplete())
	// 已完成的阶段连幂等检查都不再执行
	assert.Zero(t, executedSince(f, mark, "command -v jq"))
	assert.Zero(t, executedSince(f, mark, "useradd"))
	assert.Equal(t, 1, executedSince(f, mark, "git clone --branch"))
	assert.NotContains(t, f.files, config.StatePath)
}

func TestMachineSecondRunPerformsNoMutations(t *testing.T) {
	f := satisfiedHost()
	m := newTestMachine(f)

	_, err := m.Run(f, testPlan())
	require.NoError(t, err)

	mark := len(f.commands)
	st, err := m.Run(f, testPlan())

	require.NoError(t, err)
	assert.True(t, st.AllComplete())
	for _, mutation := range []string{"apt-get", "useradd", "usermod", "docker build", "git clone", "docker rmi"} {
		assert.Zerof(t, executedSince(f, mark, mutation), "第二次运行不应执行 %s", mutation)
	}
}

func TestMachineForceDiscardsHistoryAndStartsOver(t *testing.T) {
	f := satisfiedHost()
	old := sampleState()
	for _, p := range phases {
		old.Phases[p.ordinal] = model.PhaseComplete
	}
	seedState(t, f, old)

	plan := testPlan()
	plan.Force = true
	st, err := newTestMachine(f).Run(f, plan)

	require.NoError(t, err)
	assert.NotEqual(t, old.DeploymentID, st.DeploymentID)
	// 第一阶段重新执行了幂等检查
	assert.Equal(t, 1, f.executedMatching("command -v jq"))
}

func TestMachineResumeReusesPersistedPrincipalFacts(t *testing.T) {
	f := newFakeHost()
	f.on("docker run --rm --user 1777", ok("1777"))
	f.satisfy()

	seeded := sampleState()
	seeded.Facts.Principal = model.PrincipalFacts{
		Username: config.PrincipalName,
		UID:      1777,
		GID:      1777,
		Home:     config.PrincipalHome,
	}
	seedState(t, f, seeded)

	st, err := newTestMachine(f).Run(f, testPlan())

	require.NoError(t, err)
	assert.Equal(t, 1777, st.Facts.Principal.UID)
	// 账号事实从状态读取，不再向主机重新询问
	assert.Zero(t, f.executedMatching("id -u relayhub"))
	assert.GreaterOrEqual(t, f.executedMatching("chown -R 1777:1777"), 1)
	assert.Contains(t, f.files[config.EnvFilePath], "RELAYHUB_UID=1777")
}

func TestImageNotReverifiedAfterComplete(t *testing.T) {
	f := satisfiedHost()
	seeded := sampleState()
	for _, p := range phases {
		if p.ordinal <= model.PhaseImageBuild {
			seeded.Phases[p.ordinal] = model.PhaseComplete
		}
	}
	seeded.Facts.Image = "relayhub/relayhub:main"
	seeded.Facts.Branch = "main"
	seedState(t, f, seeded)

	st, err := newTestMachine(f).Run(f, testPlan())

	require.NoError(t, err)
	assert.True(t, st.AllComplete())
	// 镜像阶段已完成就彻底跳过，中途手动改动镜像不会被发现
	assert.Zero(t, f.executedMatching("docker image inspect"))
	assert.Zero(t, f.executedMatching("docker run --rm --user"))
}

func TestMachineCleanWipesTargetBeforeDeploy(t *testing.T) {
	f := satisfiedHost()
	seedState(t, f, sampleState())

	plan := testPlan()
	plan.Clean = true
	st, err := newTestMachine(f).Run(f, plan)

	require.NoError(t, err)
	assert.True(t, st.AllComplete())
	assert.Equal(t, 1, f.executedMatching("userdel -r"))
	assert.Equal(t, 1, f.executedMatching("rm -rf /home/relayhub"))
	assert.Equal(t, 1, f.executedMatching("docker compose down"))
	// 清理后是全新部署，第一阶段从头执行
	assert.Equal(t, 1, f.executedMatching("command -v jq"))
}

func TestMachineStaleStateStillResumes(t *testing.T) {
	f := satisfiedHost()
	seeded := sampleState()
	seeded.StartedAt = time.Now().UTC().Add(-48 * time.Hour)
	for _, p := range phases {
		if p.ordinal < model.PhaseServiceStart {
			seeded.Phases[p.ordinal] = model.PhaseComplete
		}
	}
	seeded.Facts.Image = "relayhub/relayhub:main"
	seedState(t, f, seeded)

	st, err := newTestMachine(f).Run(f, testPlan())

	// 过期只告警不丢弃，丢弃重建的代价必须由操作员承担
	require.NoError(t, err)
	assert.Equal(t, seeded.DeploymentID, st.DeploymentID)
	assert.Zero(t, f.executedMatching("command -v jq"))
	assert.Equal(t, 1, f.executedMatching("up -d --force-recreate"))
}
