package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyColumn(t *testing.T) {
	cases := map[string]Field{
		"用户名":        FieldUsername,
		"Username":   FieldUsername,
		"邮箱":         FieldEmail,
		"Email":      FieldEmail,
		"启用":         FieldEnabled,
		"上傳":         FieldUploaded,
		"下载量":        FieldDownloaded,
		"分享率":        FieldRatio,
		"Ratio":      FieldRatio,
		"做种数":        FieldSeeding,
		"做种体积":       FieldSeedingSize,
		"Seeding Size": FieldSeedingSize,
		"当前纯做种时魔":    FieldSeedMagic,
		"单种麦粒":       FieldSeedMagic,
		"后宫加成":       FieldSeedBonus,
		"魔力":         FieldSeedBonus,
		"最后做种报告":     FieldLastSeedReport,
	}
	for header, want := range cases {
		got, ok := ClassifyColumn(header)
		require.True(t, ok, "header %q should classify", header)
		require.Equal(t, want, got, "header %q", header)
	}
}

func TestClassifyColumnUnknown(t *testing.T) {
	_, ok := ClassifyColumn("操作")
	require.False(t, ok)
	_, ok = ClassifyColumn("")
	require.False(t, ok)
}

func TestMatchName(t *testing.T) {
	require.True(t, MatchName("  Seeding\tSize ", []string{"seedingsize"}))
	require.False(t, MatchName("comment", []string{"user"}))
}
