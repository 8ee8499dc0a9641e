package utils

import (
	"errors"
	"fmt"
)

// 进程退出码，按失败类别区分，便于上层脚本判断
const (
	CodeInvalidArgs     = 2
	CodeConnection      = 3
	CodePrivilege       = 4
	CodePackageInstall  = 10
	CodeEngineInstall   = 11
	CodeComposePlugin   = 12
	CodePrincipalSetup  = 13
	CodeDirectoryLayout = 14
	CodeImageBuild      = 15
	CodeComposeUpload   = 16
	CodeFirstRunSetup   = 17
	CodeTokenExtract    = 18
	CodeServiceStart    = 19
	CodeArtifact        = 20
)

// DeployError 带退出码的部署错误
type DeployError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *DeployError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// ExitCode 从任意错误中提取退出码，非 DeployError 统一返回 1
func ExitCode(err error) int {
	var de *DeployError
	if errors.As(err, &de) {
		return de.Code
	}
	if err != nil {
		return 1
	}
	return 0
}

func NewValidationError(field string, value interface{}) *DeployError {
	return &DeployError{
		Code:    CodeInvalidArgs,
		Message: fmt.Sprintf("参数验证失败: %s", field),
		Details: fmt.Sprintf("无效的值: %v", value),
	}
}

func NewConnectionError(err error) *DeployError {
	return &DeployError{
		Code:    CodeConnection,
		Message: "SSH连接错误",
		Details: err.Error(),
	}
}

func NewPrivilegeError(user string) *DeployError {
	return &DeployError{
		Code:    CodePrivilege,
		Message: "权限不足",
		Details: fmt.Sprintf("已认证用户 %s 不是root，无法执行部署", user),
	}
}

func NewPhaseError(code int, phase string, err error) *DeployError {
	return &DeployError{
		Code:    code,
		Message: fmt.Sprintf("部署阶段 %s 失败", phase),
		Details: err.Error(),
	}
}

func NewArtifactError(err error) *DeployError {
	return &DeployError{
		Code:    CodeArtifact,
		Message: "写入实例记录失败",
		Details: err.Error(),
	}
}
