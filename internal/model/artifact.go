package model

import "time"

// InstanceArtifact 部署成功后写入本地的实例记录，供其他工具消费
type InstanceArtifact struct {
	Instance  string         `yaml:"instance"`
	Host      string         `yaml:"host"`
	Port      int            `yaml:"port"`
	Username  string         `yaml:"username"`
	KeyPath   string         `yaml:"keyPath"`
	Principal string         `yaml:"principal"`
	Image     string         `yaml:"image"`
	Branch    string         `yaml:"branch"`
	CreatedAt time.Time      `yaml:"createdAt"`
	Status    ArtifactStatus `yaml:"status"`
}

type ArtifactStatus struct {
	Provisioned         bool `yaml:"provisioned"`
	OnboardingCompleted bool `yaml:"onboardingCompleted"`
}
