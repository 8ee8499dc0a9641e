package utils

import (
	"fmt"
	"net"
	"os"
	"strings"
)

// ValidateHost 校验目标地址，允许IP或主机名
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("目标地址不能为空")
	}

	if net.ParseIP(host) != nil {
		return nil
	}

	// 主机名规则：字母、数字、连字符和点
	if len(host) > 253 {
		return fmt.Errorf("主机名长度不能超过253个字符: %s", host)
	}
	for _, char := range host {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') || char == '-' || char == '.') {
			return fmt.Errorf("目标地址包含非法字符: %s", host)
		}
	}
	if strings.HasPrefix(host, "-") || strings.HasPrefix(host, ".") ||
		strings.HasSuffix(host, "-") || strings.HasSuffix(host, ".") {
		return fmt.Errorf("目标地址格式无效: %s", host)
	}

	return nil
}

// ValidatePort 校验端口范围
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("端口必须在1-65535范围内: %d", port)
	}
	return nil
}

// ValidateInstanceName 校验实例名称，规则与主机目录命名保持一致
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("实例名称不能为空")
	}

	if len(name) > 63 {
		return fmt.Errorf("实例名称长度不能超过63个字符")
	}

	for _, char := range name {
		if !((char >= 'a' && char <= 'z') || (char >= '0' && char <= '9') || char == '-') {
			return fmt.Errorf("实例名称只能包含小写字母、数字和连字符: %s", name)
		}
	}

	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return fmt.Errorf("实例名称不能以连字符开头或结尾: %s", name)
	}

	return nil
}

// ValidatePrivateKeyFile 校验私钥文件可读且为PEM格式
func ValidatePrivateKeyFile(path string) error {
	if path == "" {
		return fmt.Errorf("私钥路径不能为空")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("私钥文件不可读: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "BEGIN") || !strings.Contains(content, "END") {
		return fmt.Errorf("私钥格式无效，必须是PEM格式: %s", path)
	}

	return nil
}

// ValidateBranch 校验git分支名
func ValidateBranch(branch string) error {
	if branch == "" {
		return fmt.Errorf("分支名不能为空")
	}

	if strings.HasPrefix(branch, "-") || strings.Contains(branch, "..") {
		return fmt.Errorf("分支名格式无效: %s", branch)
	}

	for _, char := range branch {
		if char <= ' ' || strings.ContainsRune("~^:?*[\\", char) {
			return fmt.Errorf("分支名包含非法字符: %s", branch)
		}
	}

	return nil
}

// InstanceNameForHost 根据目标地址生成默认实例名，点转为连字符
func InstanceNameForHost(host string) string {
	name := strings.ToLower(host)
	name = strings.ReplaceAll(name, ".", "-")
	return name
}
