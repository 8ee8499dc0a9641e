package provision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthToken(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantToken string
		wantFound bool
	}{
		{"正常配置", `{"auth":{"token":"tok-abc"},"other":1}`, "tok-abc", true},
		{"缺少auth", `{"other":1}`, "", false},
		{"auth不是对象", `{"auth":"oops"}`, "", false},
		{"token不是字符串", `{"auth":{"token":42}}`, "", false},
		{"token为空", `{"auth":{"token":""}}`, "", false},
		{"非法JSON", `{auth`, "", false},
		{"空输入", ``, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, found := ParseAuthToken([]byte(tt.input))
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestExtractTokenReturnsEmptyWhenConfigAbsent(t *testing.T) {
	r := newFakeRunner()
	r.on("cat ", fail(1, "No such file"))

	token, err := newTestActions().ExtractToken(r)

	require.NoError(t, err, "配置不存在不是错误")
	assert.Empty(t, token)
}

func TestExtractTokenReadsRemoteConfig(t *testing.T) {
	r := newFakeRunner()
	r.on("cat ", ok(`{"auth":{"token":"tok-xyz"}}`))

	token, err := newTestActions().ExtractToken(r)

	require.NoError(t, err)
	assert.Equal(t, "tok-xyz", token)
}
