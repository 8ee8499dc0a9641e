package state

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"relayhub-deploy-cli/internal/model"
	"relayhub-deploy-cli/internal/pkg/logger"
	"relayhub-deploy-cli/internal/pkg/provision"
	"relayhub-deploy-cli/internal/pkg/ssh"
	"relayhub-deploy-cli/pkg/utils"
)

// 超过这个时长的历史状态只告警不自动丢弃：
// 丢弃可能触发昂贵的重建，必须由操作员显式选择
const staleThreshold = 24 * time.Hour

// Machine 按固定顺序推进十个部署阶段，每次转换后立即远端持久化
type Machine struct {
	actions *provision.Actions
	store   *Store
	logger  *logger.Logger
}

func NewMachine(actions *provision.Actions, store *Store, log *logger.Logger) *Machine {
	return &Machine{
		actions: actions,
		store:   store,
		logger:  log,
	}
}

type phaseDef struct {
	ordinal int
	name    string
	run     func(m *Machine, r ssh.Runner, plan *model.DeployPlan, st *model.DeploymentState) error
}

var phases = []phaseDef{
	{model.PhaseBasePackages, "base-packages", (*Machine).runBasePackages},
	{model.PhaseContainerEngine, "container-engine", (*Machine).runContainerEngine},
	{model.PhaseComposePlugin, "compose-plugin", (*Machine).runComposePlugin},
	{model.PhasePrincipal, "principal", (*Machine).runPrincipal},
	{model.PhaseDirectories, "directories", (*Machine).runDirectories},
	{model.PhaseImageBuild, "image-build", (*Machine).runImageBuild},
	{model.PhaseComposeUpload, "compose-upload", (*Machine).runComposeUpload},
	{model.PhaseFirstRunSetup, "first-run-setup", (*Machine).runFirstRunSetup},
	{model.PhaseTokenExtract, "token-extract", (*Machine).runTokenExtract},
	{model.PhaseServiceStart, "service-start", (*Machine).runServiceStart},
}

// Run 执行整条流水线。
// 有历史状态则跳过已完成阶段从第一个未完成阶段续跑；
// force删除历史状态重新开始；clean先彻底清理目标主机。
// 全部成功后删除远端状态文件。
func (m *Machine) Run(r ssh.Runner, plan *model.DeployPlan) (*model.DeploymentState, error) {
	if plan.Clean {
		if err := m.actions.CleanTarget(r); err != nil {
			return nil, fmt.Errorf("清理目标主机失败: %v", err)
		}
		if err := m.store.Delete(); err != nil {
			return nil, err
		}
	}

	st := m.store.Load()

	if st != nil && plan.Force {
		m.logger.Warn("指定了force，丢弃历史部署状态重新开始")
		if err := m.store.Delete(); err != nil {
			return nil, err
		}
		st = nil
	}

	if st == nil {
		st = &model.DeploymentState{
			Instance:     plan.Instance,
			DeploymentID: uuid.NewString(),
			StartedAt:    time.Now().UTC(),
			Phases:       make(map[int]model.PhaseStatus),
		}
		m.logger.Infof("开始新部署 %s", st.DeploymentID)
	} else {
		m.logger.Infof("发现历史部署 %s（开始于 %s），从未完成阶段续跑",
			st.DeploymentID, st.StartedAt.Format(time.RFC3339))
		if st.Age() > staleThreshold {
			m.logger.Warnf("历史状态已超过%v，如需重新开始请使用 --force", staleThreshold)
		}
	}

	for _, p := range phases {
		if st.PhaseStatusOf(p.ordinal) == model.PhaseComplete {
			m.logger.PhaseSkipped(p.ordinal, p.name)
			continue
		}

		m.logger.PhaseStart(p.ordinal, p.name)
		if err := p.run(m, r, plan, st); err != nil {
			st.Phases[p.ordinal] = model.PhaseFailed
			st.LastOrdinal = p.ordinal
			if saveErr := m.store.Save(st); saveErr != nil {
				m.logger.Errorf("持久化失败状态出错: %v", saveErr)
			}
			m.logger.PhaseError(p.ordinal, p.name, err)
			return st, err
		}

		// 先持久化再进入下一阶段，崩溃后不会重放已完成的工作
		st.Phases[p.ordinal] = model.PhaseComplete
		st.LastOrdinal = p.ordinal
		if err := m.store.Save(st); err != nil {
			return st, err
		}
		m.logger.PhaseSuccess(p.ordinal, p.name)
	}

	// 全部成功，远端状态文件使命结束
	if err := m.store.Delete(); err != nil {
		m.logger.Warnf("删除状态文件失败: %v", err)
	}

	return st, nil
}

func (m *Machine) runBasePackages(r ssh.Runner, plan *model.DeployPlan, st *model.DeploymentState) error {
	return m.actions.InstallBasePackages(r)
}

func (m *Machine) runContainerEngine(r ssh.Runner, plan *model.DeployPlan, st *model.DeploymentState) error {
	return m.actions.InstallContainerEngine(r)
}

func (m *Machine) runComposePlugin(r ssh.Runner, plan *model.DeployPlan, st *model.DeploymentState) error {
	return m.actions.InstallComposePlugin(r)
}

func (m *Machine) runPrincipal(r ssh.Runner, plan *model.DeployPlan, st *model.DeploymentState) error {
	facts, err := m.actions.EnsurePrincipal(r)
	if err != nil {
		return err
	}
	// 一次性事实：本次运行和后续续跑都从状态读取，不再重新解析
	st.Facts.Principal = facts
	return nil
}

func (m *Machine) runDirectories(r ssh.Runner, plan *model.DeployPlan, st *model.DeploymentState) error {
	return m.actions.EnsureDirectories(r, st.Facts.Principal)
}

func (m *Machine) runImageBuild(r ssh.Runner, plan *model.DeployPlan, st *model.DeploymentState) error {
	image, err := m.actions.BuildImage(r, st.Facts.Principal, plan.Branch)
	if err != nil {
		return err
	}
	st.Facts.Image = image
	st.Facts.Branch = plan.Branch
	return nil
}

func (m *Machine) runComposeUpload(r ssh.Runner, plan *model.DeployPlan, st *model.DeploymentState) error {
	// 令牌此时通常尚不存在，第9阶段提取后会重新上传环境文件
	return m.actions.UploadCompose(r, st.Facts.Principal, st.Facts.Image, "")
}

func (m *Machine) runFirstRunSetup(r ssh.Runner, plan *model.DeployPlan, st *model.DeploymentState) error {
	onboarded, err := m.actions.RunFirstTimeSetup(r, st.Facts.Principal, !plan.SkipInteractive)
	if err != nil {
		return err
	}
	st.Facts.Onboarded = onboarded
	return nil
}

func (m *Machine) runTokenExtract(r ssh.Runner, plan *model.DeployPlan, st *model.DeploymentState) error {
	token, err := m.actions.ExtractToken(r)
	if err != nil {
		return utils.NewPhaseError(utils.CodeTokenExtract, "token-extract",
			fmt.Errorf("读取应用配置失败: %v", err))
	}
	if token == "" {
		// 没有令牌不是错误，环境文件保持现状
		return nil
	}
	return m.actions.UploadCompose(r, st.Facts.Principal, st.Facts.Image, token)
}

func (m *Machine) runServiceStart(r ssh.Runner, plan *model.DeployPlan, st *model.DeploymentState) error {
	return m.actions.StartService(r, st.Facts.Principal)
}
