package provision

import (
	"io"
	"strings"

	"relayhub-deploy-cli/internal/pkg/ssh"
)

// fakeRunner 脚本化的远端会话替身：按子串匹配命令并返回预设结果，
// 同时记录所有执行过的命令供断言。未匹配的命令默认成功。
type fakeRunner struct {
	rules        []fakeRule
	commands     []string
	uploads      map[string]string
	interactives []string
	interactErr  error
}

type fakeRule struct {
	match   string
	results []*ssh.CommandResult
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{uploads: make(map[string]string)}
}

// on 注册命令响应。多个结果按调用次数依次消费，最后一个保持生效。
func (f *fakeRunner) on(match string, results ...*ssh.CommandResult) {
	f.rules = append(f.rules, fakeRule{match: match, results: results})
}

func ok(stdout string) *ssh.CommandResult {
	return &ssh.CommandResult{Stdout: stdout, ExitCode: 0}
}

func fail(code int, stderr string) *ssh.CommandResult {
	return &ssh.CommandResult{Stderr: stderr, ExitCode: code}
}

func (f *fakeRunner) lookup(cmd string) *ssh.CommandResult {
	for i := range f.rules {
		r := &f.rules[i]
		if strings.Contains(cmd, r.match) {
			if len(r.results) > 1 {
				head := r.results[0]
				r.results = r.results[1:]
				return head
			}
			return r.results[0]
		}
	}
	return ok("")
}

func (f *fakeRunner) Execute(cmd string) (*ssh.CommandResult, error) {
	f.commands = append(f.commands, cmd)
	return f.lookup(cmd), nil
}

func (f *fakeRunner) ExecuteStream(cmd string, sink io.Writer) (int, error) {
	f.commands = append(f.commands, cmd)
	return f.lookup(cmd).ExitCode, nil
}

func (f *fakeRunner) Upload(content, remotePath string) error {
	f.uploads[remotePath] = content
	return nil
}

func (f *fakeRunner) Interactive(cmd string) error {
	f.interactives = append(f.interactives, cmd)
	return f.interactErr
}

func (f *fakeRunner) executedMatching(substr string) int {
	count := 0
	for _, cmd := range f.commands {
		if strings.Contains(cmd, substr) {
			count++
		}
	}
	return count
}
