package textutil

// Field is a canonical column identity shared by the roster and
// wallet parsers. Every site renders its own header wording; the
// synonym families below fold the observed variants (simplified and
// traditional script, English, per-site currency names) back onto one
// field set.
type Field string

const (
	FieldUsername       Field = "username"
	FieldEmail          Field = "email"
	FieldEnabled        Field = "enabled"
	FieldUploaded       Field = "uploaded"
	FieldDownloaded     Field = "downloaded"
	FieldRatio          Field = "ratio"
	FieldSeeding        Field = "seeding"
	FieldSeedingSize    Field = "seeding_size"
	FieldSeedMagic      Field = "seed_magic"
	FieldSeedBonus      Field = "seed_bonus"
	FieldLastSeedReport Field = "last_seed_report"
)

// CurrencyNames lists the internal-currency names observed across
// site families. Wallet balance patterns and the per-seed magic
// column family are both generated from this list.
var CurrencyNames = []string{
	"魔力", "magic", "工分", "积分", "bonus",
	"杏仁", "ucoin", "麦粒", "银元", "电力值",
	"松子值", "松子", "憨豆", "茉莉", "蟹币值", "蟹币",
	"鲸币", "蝌蚪", "灵石", "爆米花", "冰晶",
	"魅力值", "猫粮", "星焱", "音浪", "金元宝",
}

type columnFamily struct {
	field    Field
	keywords []string
}

func prefixed(prefix string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = prefix + n
	}
	return out
}

// Family order matters: a header cell is assigned to the first family
// containing one of its keywords, so more specific families must come
// before generic ones ("seeding size" would land in the bare "seed"
// family if it were ordered first).
var columnFamilies = []columnFamily{
	{FieldUsername, []string{"用户名", "username", "名字", "user"}},
	{FieldEmail, []string{"邮箱", "email", "电子邮件", "mail"}},
	{FieldEnabled, []string{"启用", "狀態", "enabled", "status"}},
	{FieldUploaded, []string{"上传", "上傳", "uploaded", "upload"}},
	{FieldDownloaded, []string{"下载", "下載", "downloaded", "download"}},
	{FieldRatio, []string{"分享率", "分享", "ratio"}},
	{FieldSeedingSize, []string{"做种体积", "做種體積", "seedingsize"}},
	{FieldLastSeedReport, []string{"最后做种汇报", "最后做种报告", "最後做種報告", "最后做种", "lastseedreport"}},
	{FieldSeedMagic, append(
		[]string{"做种时魔", "当前纯做种时魔", "纯做种时魔", "做种积分", "seedbonus", "seedmagic"},
		prefixed("单种", CurrencyNames)...,
	)},
	{FieldSeeding, []string{"做种数", "做種數", "seeding", "seed"}},
	{FieldSeedBonus, append(
		[]string{"后宫加成", "後宮加成", "inviteebonus", "加成"},
		CurrencyNames...,
	)},
}

// ClassifyColumn maps a raw header cell to its canonical field.
// Unrecognized headers report false and the column is ignored.
func ClassifyColumn(header string) (Field, bool) {
	for _, family := range columnFamilies {
		if MatchName(header, family.keywords) {
			return family.field, true
		}
	}
	return "", false
}

// RosterHeaderKeywords are the markers that identify a table as a
// member roster at all; a table whose header row contains none of
// these is skipped.
var RosterHeaderKeywords = []string{
	"用户名", "邮箱", "email", "分享率", "ratio", "username",
}
