package model

import "fmt"

// DeployPlan 部署计划：启动时解析一次，之后只读
type DeployPlan struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	Username        string `json:"username"`
	PrivateKeyPath  string `json:"privateKeyPath"`
	Branch          string `json:"branch"`
	Instance        string `json:"instance"`
	SkipInteractive bool   `json:"skipInteractive"`
	SkipPairing     bool   `json:"skipPairing"`
	AssumeYes       bool   `json:"assumeYes"`
	Force           bool   `json:"force"`
	Clean           bool   `json:"clean"`
	Verbose         bool   `json:"verbose"`
}

// Address 返回 host:port 形式的目标地址
func (p *DeployPlan) Address() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}
