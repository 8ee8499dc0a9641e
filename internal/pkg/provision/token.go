package provision

import (
	"encoding/json"
	"fmt"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/pkg/ssh"
)

// ExtractToken 从远端应用配置里提取认证令牌。
// 文件或字段不存在返回空值，不算错误，由调用方显式判断。
func (a *Actions) ExtractToken(r ssh.Runner) (string, error) {
	result, err := r.Execute(fmt.Sprintf("cat %s", config.AppConfigPath))
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		a.logger.Debugf("应用配置 %s 不存在，暂无令牌", config.AppConfigPath)
		return "", nil
	}

	token, ok := ParseAuthToken([]byte(result.Stdout))
	if !ok {
		a.logger.Debug("应用配置中没有auth.token字段")
		return "", nil
	}

	a.logger.Info("已提取应用认证令牌")
	return token, nil
}

// ParseAuthToken 宽松解析应用配置JSON，取auth.token字段。
// 远端配置格式不受本工具控制，解析集中在这一个函数里。
func ParseAuthToken(data []byte) (string, bool) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", false
	}

	auth, ok := doc["auth"].(map[string]interface{})
	if !ok {
		return "", false
	}

	token, ok := auth["token"].(string)
	if !ok || token == "" {
		return "", false
	}

	return token, true
}
