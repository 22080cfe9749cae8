package nexusphp

import "strings"

// specialPlatforms are site families with their own architecture;
// they must never be claimed by the default pipeline even when their
// URL would otherwise look like a match.
var specialPlatforms = []string{
	"m-team", "totheglory", "hdchina", "butterfly", "dmhy", "蝶粉",
}

// urlFeatures are URL fragments of known installations of the
// platform family, checked in order.
var urlFeatures = []string{
	"php",
	"nexus",
	"agsvpt",
	"audiences",
	"hdpt",
	"wintersakura",
	"hdmayi",
	"u2.dmhy",
	"hddolby",
	"hdarea",
	"pt.soulvoice",
	"ptsbao",
	"hdhome",
	"hdatmos",
	"1ptba",
	"keepfrds",
	"moecat",
	"springsunday",
}

// Match classifies a site URL as a default-pipeline installation:
// exclusion list first, then the recognized URL fragments, then the
// generic platform marker.
func Match(siteUrl string) bool {
	lowered := strings.ToLower(siteUrl)
	for _, special := range specialPlatforms {
		if strings.Contains(lowered, special) {
			return false
		}
	}
	for _, feature := range urlFeatures {
		if strings.Contains(lowered, feature) {
			return true
		}
	}
	return strings.Contains(lowered, "php")
}
