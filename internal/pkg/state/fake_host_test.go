package state

import (
	"io"
	"strings"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/pkg/ssh"
)

// fakeHost 模拟目标主机：维护一个简单的远端文件视图（cat/test -f/rm/上传
// 都作用在它上面），其余命令按子串规则返回预设结果，未匹配默认成功。
type fakeHost struct {
	files        map[string]string
	rules        []fakeRule
	commands     []string
	interactives []string
}

type fakeRule struct {
	match   string
	results []*ssh.CommandResult
}

func newFakeHost() *fakeHost {
	return &fakeHost{files: make(map[string]string)}
}

func (f *fakeHost) on(match string, results ...*ssh.CommandResult) {
	f.rules = append(f.rules, fakeRule{match: match, results: results})
}

func ok(stdout string) *ssh.CommandResult {
	return &ssh.CommandResult{Stdout: stdout, ExitCode: 0}
}

func fail(code int, stderr string) *ssh.CommandResult {
	return &ssh.CommandResult{Stderr: stderr, ExitCode: code}
}

func (f *fakeHost) lookup(cmd string) (*ssh.CommandResult, bool) {
	for i := range f.rules {
		r := &f.rules[i]
		if strings.Contains(cmd, r.match) {
			if len(r.results) > 1 {
				head := r.results[0]
				r.results = r.results[1:]
				return head, true
			}
			return r.results[0], true
		}
	}
	return nil, false
}

func (f *fakeHost) Execute(cmd string) (*ssh.CommandResult, error) {
	f.commands = append(f.commands, cmd)

	if path, isCat := singlePathArg(cmd, "cat "); isCat {
		if content, exists := f.files[path]; exists {
			return ok(content), nil
		}
		if result, matched := f.lookup(cmd); matched {
			return result, nil
		}
		return fail(1, "No such file or directory"), nil
	}

	if path, isTest := singlePathArg(cmd, "test -f "); isTest {
		if _, exists := f.files[path]; exists {
			return ok(""), nil
		}
		if result, matched := f.lookup(cmd); matched {
			return result, nil
		}
		return fail(1, ""), nil
	}

	if path, isRm := singlePathArg(cmd, "rm -f "); isRm {
		delete(f.files, path)
		return ok(""), nil
	}

	if result, matched := f.lookup(cmd); matched {
		return result, nil
	}
	return ok(""), nil
}

func (f *fakeHost) ExecuteStream(cmd string, sink io.Writer) (int, error) {
	f.commands = append(f.commands, cmd)
	if result, matched := f.lookup(cmd); matched {
		return result.ExitCode, nil
	}
	return 0, nil
}

func (f *fakeHost) Upload(content, remotePath string) error {
	f.files[remotePath] = content
	return nil
}

func (f *fakeHost) Interactive(cmd string) error {
	f.interactives = append(f.interactives, cmd)
	return nil
}

// singlePathArg 识别形如 "<prefix><单个路径>" 的命令
func singlePathArg(cmd, prefix string) (string, bool) {
	if !strings.HasPrefix(cmd, prefix) {
		return "", false
	}
	arg := strings.TrimSpace(strings.TrimPrefix(cmd, prefix))
	if arg == "" || strings.ContainsAny(arg, " |&;") {
		return "", false
	}
	return arg, true
}

func (f *fakeHost) executedMatching(substr string) int {
	count := 0
	for _, cmd := range f.commands {
		if strings.Contains(cmd, substr) {
			count++
		}
	}
	return count
}

// satisfiedHost 返回一台所有部署条件都已满足的主机
func satisfiedHost() *fakeHost {
	f := newFakeHost()
	f.satisfy()
	return f
}

// satisfy 追加"一切就绪"的规则集。先注册的规则优先匹配，
// 测试可以在调用前注册覆盖规则制造局部故障。
func (f *fakeHost) satisfy() {
	f.files[config.OnboardingMarker] = ""
	f.files[config.AppConfigPath] = `{"auth":{"token":"tok-test"}}`
	f.on("command -v jq", ok("/usr/bin/jq"))
	f.on("docker version", ok("27.1.1"))
	f.on("docker compose version", ok("2.29.0"))
	f.on("id -u relayhub", ok("1500"))
	f.on("id -g relayhub", ok("1500"))
	f.on("getent passwd relayhub", ok("/home/relayhub"))
	f.on("docker image inspect", ok("sha256:abc"))
	f.on("docker run --rm --user", ok("1500"))
	f.on("docker compose logs", ok("relayhub  | gateway listening on 0.0.0.0:8790"))
}

var _ ssh.Runner = (*fakeHost)(nil)
