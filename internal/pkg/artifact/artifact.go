// Package artifact 在部署成功后写入本地实例记录文件
package artifact

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"relayhub-deploy-cli/internal/model"
	"relayhub-deploy-cli/pkg/utils"
)

// FileName 返回实例记录文件名，如 instance-203-0-113-10.yml
func FileName(host string) string {
	return fmt.Sprintf("instance-%s.yml", utils.InstanceNameForHost(host))
}

// Build 根据部署计划和最终状态组装实例记录
func Build(plan *model.DeployPlan, st *model.DeploymentState) *model.InstanceArtifact {
	return &model.InstanceArtifact{
		Instance:  st.Instance,
		Host:      plan.Host,
		Port:      plan.Port,
		Username:  plan.Username,
		KeyPath:   plan.PrivateKeyPath,
		Principal: st.Facts.Principal.Username,
		Image:     st.Facts.Image,
		Branch:    st.Facts.Branch,
		CreatedAt: time.Now().UTC(),
		Status: model.ArtifactStatus{
			Provisioned:         true,
			OnboardingCompleted: st.Facts.Onboarded,
		},
	}
}

// Write 把实例记录写入当前目录，覆盖同名旧文件
func Write(a *model.InstanceArtifact) (string, error) {
	data, err := yaml.Marshal(a)
	if err != nil {
		return "", utils.NewArtifactError(err)
	}

	path := FileName(a.Host)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", utils.NewArtifactError(err)
	}

	return path, nil
}
