package model

import "time"

// PhaseStatus 阶段状态
type PhaseStatus string

const (
	PhasePending  PhaseStatus = "pending"
	PhaseComplete PhaseStatus = "complete"
	PhaseFailed   PhaseStatus = "failed"
)

// 部署阶段序号，1-10，顺序固定
const (
	PhaseBasePackages    = 1
	PhaseContainerEngine = 2
	PhaseComposePlugin   = 3
	PhasePrincipal       = 4
	PhaseDirectories     = 5
	PhaseImageBuild      = 6
	PhaseComposeUpload   = 7
	PhaseFirstRunSetup   = 8
	PhaseTokenExtract    = 9
	PhaseServiceStart    = 10

	PhaseCount = 10
)

// PrincipalFacts 第4阶段解析出的运行账号信息，之后各阶段只读
type PrincipalFacts struct {
	Username string `json:"username"`
	UID      int    `json:"uid"`
	GID      int    `json:"gid"`
	Home     string `json:"home"`
}

// DeploymentFacts 部署过程中一次性确定的事实，随状态文件持久化
type DeploymentFacts struct {
	Principal PrincipalFacts `json:"principal"`
	Image     string         `json:"image,omitempty"`
	Branch    string         `json:"branch,omitempty"`
	Onboarded bool           `json:"onboarded"`
}

// DeploymentState 远端持久化的部署状态，支持断点续传
type DeploymentState struct {
	Instance     string              `json:"instance"`
	DeploymentID string              `json:"deploymentId"`
	StartedAt    time.Time           `json:"startedAt"`
	LastOrdinal  int                 `json:"lastOrdinal"`
	Phases       map[int]PhaseStatus `json:"phases"`
	Facts        DeploymentFacts     `json:"facts"`
}

// PhaseStatusOf 返回指定阶段的状态，未记录视为 pending
func (s *DeploymentState) PhaseStatusOf(ordinal int) PhaseStatus {
	if s == nil || s.Phases == nil {
		return PhasePending
	}
	if st, ok := s.Phases[ordinal]; ok {
		return st
	}
	return PhasePending
}

// AllComplete 判断是否所有阶段都已完成
func (s *DeploymentState) AllComplete() bool {
	for i := 1; i <= PhaseCount; i++ {
		if s.PhaseStatusOf(i) != PhaseComplete {
			return false
		}
	}
	return true
}

// Age 返回状态距今的时长
func (s *DeploymentState) Age() time.Duration {
	return time.Since(s.StartedAt)
}
