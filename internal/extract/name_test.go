package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedwatch/internal/domain"
)

func TestResolveName(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			name: "nickname element",
			page: `<body><div class="nickname"> 小明 </div><h1>Site</h1></body>`,
			want: "小明",
		},
		{
			name: "skips login control",
			page: `<body><div class="username">登录/注册</div><h1>Alice</h1></body>`,
			want: "Alice",
		},
		{
			name: "id suffix in page text",
			page: `<body><div>Welcome</div><div>Alice Smith (ID: 12345)</div></body>`,
			want: "Alice Smith",
		},
		{
			name: "id suffix longer than 50 runes is skipped",
			page: `<body><div>` + strings.Repeat("长", 60) + ` (ID: 1)</div><div>Bob (ID: 2)</div></body>`,
			want: "Bob",
		},
		{
			name: "short CJK span",
			page: `<body><span>ID 42</span><span>注册</span><span>某</span><span>张三丰</span></body>`,
			want: "张三丰",
		},
		{
			name: "unknown",
			page: `<body><p>nothing</p></body>`,
			want: domain.UnknownName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(tt.page)
			require.NoError(t, err)
			e := newTestExtractor(t, DefaultPolicy())
			assert.Equal(t, tt.want, e.ResolveName(doc))
		})
	}
}

func TestInnerText_BreaksBlocks(t *testing.T) {
	doc, err := Parse(`<body><div>a</div><div>b<script>x()</script></div></body>`)
	require.NoError(t, err)
	lines := strings.FieldsFunc(innerText(doc.Find("body")), func(r rune) bool { return r == '\n' })
	assert.Equal(t, []string{"a", "b"}, lines)
}
