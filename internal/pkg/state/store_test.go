package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/model"
	"relayhub-deploy-cli/internal/pkg/logger"
)

func seedState(t *testing.T, f *fakeHost, st *model.DeploymentState) {
	t.Helper()
	data, err := json.Marshal(st)
	require.NoError(t, err)
	f.files[config.StatePath] = string(data)
}

func sampleState() *model.DeploymentState {
	return &model.DeploymentState{
		Instance:     "test-instance",
		DeploymentID: "dep-0001",
		StartedAt:    time.Now().UTC().Truncate(time.Second),
		LastOrdinal:  model.PhasePrincipal,
		Phases: map[int]model.PhaseStatus{
			model.PhaseBasePackages:    model.PhaseComplete,
			model.PhaseContainerEngine: model.PhaseComplete,
			model.PhaseComposePlugin:   model.PhaseComplete,
			model.PhasePrincipal:       model.PhaseComplete,
		},
		Facts: model.DeploymentFacts{
			Principal: model.PrincipalFacts{
				Username: config.PrincipalName,
				UID:      1500,
				GID:      1500,
				Home:     config.PrincipalHome,
			},
		},
	}
}

func TestStoreLoadReturnsNilWhenFileAbsent(t *testing.T) {
	f := newFakeHost()
	st := NewStore(f, logger.NewNopLogger()).Load()
	assert.Nil(t, st)
}

func TestStoreLoadTreatsCorruptFileAsAbsent(t *testing.T) {
	f := newFakeHost()
	f.files[config.StatePath] = `{"instance": broken`

	st := NewStore(f, logger.NewNopLogger()).Load()

	assert.Nil(t, st, "损坏的状态文件应当等同于没有状态")
}

func TestStoreLoadRejectsStateWithoutRequiredFields(t *testing.T) {
	f := newFakeHost()
	f.files[config.StatePath] = `{"instance":"x"}`

	st := NewStore(f, logger.NewNopLogger()).Load()

	assert.Nil(t, st)
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	f := newFakeHost()
	store := NewStore(f, logger.NewNopLogger())
	want := sampleState()

	require.NoError(t, store.Save(want))
	// 账号创建前home可能不存在，保存必须自带建目录
	assert.Equal(t, 1, f.executedMatching("mkdir -p /home/relayhub"))

	got := store.Load()
	require.NotNil(t, got)
	assert.Equal(t, want.DeploymentID, got.DeploymentID)
	assert.Equal(t, want.Phases, got.Phases)
	assert.Equal(t, want.Facts.Principal, got.Facts.Principal)
}

func TestStoreDeleteRemovesFileAndIsIdempotent(t *testing.T) {
	f := newFakeHost()
	store := NewStore(f, logger.NewNopLogger())
	seedState(t, f, sampleState())

	require.NoError(t, store.Delete())
	assert.NotContains(t, f.files, config.StatePath)
	require.NoError(t, store.Delete())
}
