package nexusphp

import (
	"context"
	"invitarium/lib/htmlutil"
	"invitarium/lib/sizeutil"
	"invitarium/lib/textutil"
	"invitarium/lib/tracker"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

var banKeywords = []string{"禁", "disabled", "banned"}

var rowClassFlags = []string{"rowbanned", "banned", "disabled"}

// specialTitles mark the alternate invite-system layout some sites
// use; rosters on those pages repeat members across sections, so
// rows are deduplicated by username.
var specialTitles = []string{"后宫", "後宮", "邀請系統", "邀请系统"}

// columnHeaderMap maps a table column index to its canonical field.
// It is rebuilt for every table; headers differ even between tables
// on the same page.
type columnHeaderMap map[int]textutil.Field

func buildColumnHeaderMap(headerCells []string) columnHeaderMap {
	m := columnHeaderMap{}
	for i, header := range headerCells {
		field, ok := textutil.ClassifyColumn(header)
		if !ok {
			continue
		}
		if _, taken := hasField(m, field); !taken {
			m[i] = field
		}
	}
	return m
}

func hasField(m columnHeaderMap, field textutil.Field) (int, bool) {
	for i, f := range m {
		if f == field {
			return i, true
		}
	}
	return 0, false
}

// parseRoster extracts invitee rows from the first candidate table
// that yields any. Row- and cell-level anomalies are skipped and
// logged; they never abort the table.
func parseRoster(ctx context.Context, doc *goquery.Document, baseUrl *url.URL) []tracker.InviteeRecord {
	ctx, span := tracer.Start(ctx, "parseRoster")
	defer span.End()

	dedupe := false
	title := doc.Find("h1").First().Text()
	for _, marker := range specialTitles {
		if strings.Contains(title, marker) {
			dedupe = true
			break
		}
	}

	for _, table := range locateRosterTables(doc) {
		invitees := parseRosterTable(ctx, table, baseUrl, dedupe)
		if len(invitees) > 0 {
			span.SetAttributes(attribute.Int("invitees", len(invitees)))
			return invitees
		}
	}
	return nil
}

func parseRosterTable(ctx context.Context, table *goquery.Selection, baseUrl *url.URL, dedupe bool) []tracker.InviteeRecord {
	headerRow := table.Find("tr").First()
	if headerRow.Length() == 0 {
		return nil
	}
	var headers []string
	headerRow.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(cell.Text()))
	})
	if !textutil.MatchName(strings.Join(headers, " "), textutil.RosterHeaderKeywords) {
		return nil
	}
	columns := buildColumnHeaderMap(headers)

	var invitees []tracker.InviteeRecord
	seen := map[string]bool{}

	table.Find("tr").Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		record, banned := parseRosterRow(row, cells, columns, baseUrl)
		if record.Username == "" {
			slog.DebugContext(ctx, "dropping roster row without username")
			return
		}
		if dedupe {
			if seen[record.Username] {
				return
			}
			seen[record.Username] = true
		}

		finalizeRecord(&record, banned)
		invitees = append(invitees, record)
	})

	return invitees
}

func parseRosterRow(row *goquery.Selection, cells *goquery.Selection, columns columnHeaderMap, baseUrl *url.URL) (tracker.InviteeRecord, bool) {
	var record tracker.InviteeRecord

	// any single ban signal is sufficient: row class flag, disabled
	// icon, an explicit "no" in the enabled column, or ban wording in
	// the status text
	banned := false
	if len(row.Nodes) > 0 {
		for _, flag := range rowClassFlags {
			if htmlutil.HasAttrValue(row.Nodes[0], "class", flag) {
				banned = true
				break
			}
		}
	}
	if row.Find(`img.disabled, img[alt="Disabled"]`).Length() > 0 {
		banned = true
	}

	cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
		field, ok := columns[i]
		if !ok {
			return true
		}
		text := strings.TrimSpace(cell.Text())

		switch field {
		case textutil.FieldUsername:
			anchor := cell.Find("a").First()
			if anchor.Length() > 0 {
				record.Username = strings.TrimSpace(anchor.Text())
				if href, ok := anchor.Attr("href"); ok && href != "" {
					record.ProfileUrl = resolveHref(baseUrl, href)
				}
			} else {
				record.Username = text
			}
		case textutil.FieldEmail:
			record.Email = text
		case textutil.FieldEnabled:
			lowered := strings.ToLower(text)
			if lowered == "no" || textutil.MatchName(lowered, banKeywords) {
				record.Enabled = "No"
				banned = true
			} else {
				record.Enabled = "Yes"
			}
		case textutil.FieldUploaded:
			record.Uploaded = text
			record.UploadedBytes = sizeutil.ParseSize(text)
		case textutil.FieldDownloaded:
			record.Downloaded = text
			record.DownloadedBytes = sizeutil.ParseSize(text)
		case textutil.FieldRatio:
			record.Ratio, record.RatioValue, record.RatioHealth = parseRatioCell(text)
		case textutil.FieldSeeding:
			record.Seeding = text
		case textutil.FieldSeedingSize:
			record.SeedingSize = text
		case textutil.FieldSeedMagic:
			record.SeedMagic = text
		case textutil.FieldSeedBonus:
			record.SeedBonus = text
		case textutil.FieldLastSeedReport:
			record.LastSeedReport = text
		}
		return true
	})

	return record, banned
}

// parseRatioCell normalizes the raw ratio text and computes its
// numeric value. An unresolvable value reads as health "unknown";
// the no-data override happens later once upload/download are known.
func parseRatioCell(text string) (string, float64, tracker.RatioHealth) {
	raw := text
	if raw == "---" || raw == "" {
		raw = "0"
	} else if sizeutil.IsInfinite(raw) {
		raw = "∞"
	}

	value, ok := sizeutil.ParseRatio(raw)
	if !ok {
		return raw, 0, tracker.RatioUnknown
	}
	return raw, value, healthForRatio(value)
}

func healthForRatio(value float64) tracker.RatioHealth {
	switch {
	case value >= sizeutil.Sentinel:
		return tracker.RatioExcellent
	case value >= 1.0:
		return tracker.RatioGood
	case value >= 0.5:
		return tracker.RatioWarning
	default:
		return tracker.RatioDanger
	}
}

var ratioLabels = map[tracker.RatioHealth]string{
	tracker.RatioExcellent: "无限",
	tracker.RatioGood:      "良好",
	tracker.RatioWarning:   "较低",
	tracker.RatioDanger:    "危险",
	tracker.RatioNeutral:   "无数据",
	tracker.RatioUnknown:   "未知",
}

// finalizeRecord fills the derived fields once the whole row is
// known: default enabled/status from the ban evidence, and the
// no-data override that forces health to neutral when both transfer
// directions read zero.
func finalizeRecord(record *tracker.InviteeRecord, banned bool) {
	if record.Enabled == "" {
		if banned {
			record.Enabled = "No"
		} else {
			record.Enabled = "Yes"
		}
	}
	if record.Status == "" {
		if banned {
			record.Status = "已禁用"
		} else {
			record.Status = "已确认"
		}
	}

	// rosters without a ratio column still yield one, derived from
	// the transfer totals
	if record.Ratio == "" && (record.UploadedBytes > 0 || record.DownloadedBytes > 0) {
		record.Ratio = sizeutil.Ratio(record.UploadedBytes, record.DownloadedBytes)
		if value, ok := sizeutil.ParseRatio(record.Ratio); ok {
			record.RatioValue = value
			record.RatioHealth = healthForRatio(value)
		}
	}

	noData := record.UploadedBytes == 0 && record.DownloadedBytes == 0
	if noData {
		record.RatioHealth = tracker.RatioNeutral
	}
	if record.RatioHealth == "" {
		if record.Ratio == "∞" {
			record.RatioHealth = tracker.RatioExcellent
		} else {
			record.RatioHealth = tracker.RatioUnknown
		}
	}
	record.RatioLabel = ratioLabels[record.RatioHealth]
}

func resolveHref(baseUrl *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if baseUrl == nil {
		return href
	}
	return baseUrl.ResolveReference(ref).String()
}
