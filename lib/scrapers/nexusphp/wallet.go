package nexusphp

import (
	"context"
	"fmt"
	"invitarium/lib/sizeutil"
	"invitarium/lib/textutil"
	"invitarium/lib/tracker"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

// Wallet holds what the bonus-shop page yields: the current balance
// in whatever the site calls its currency, and the shop prices of
// the two invite kinds (0 when not sold).
type Wallet struct {
	Bonus                float64
	PermanentInvitePrice float64
	TemporaryInvitePrice float64
}

// Balance patterns per currency synonym, most specific phrasing
// first: "魔力值 ... (当前 X)", "当前 X ... 魔力值", then the plain
// "魔力值: X" label form. First match across the ordered list wins.
var balanceRegexes = buildBalanceRegexes()

func buildBalanceRegexes() []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, name := range textutil.CurrencyNames {
		quoted := regexp.QuoteMeta(name)
		out = append(out, regexp.MustCompile(`(?i)`+quoted+`[^(]*\(当前([\d,.]+)[^)]*\)`))
	}
	for _, name := range textutil.CurrencyNames {
		quoted := regexp.QuoteMeta(name)
		out = append(out, regexp.MustCompile(`(?i)当前([\d,.]+)[^)]*`+quoted))
	}
	for _, name := range textutil.CurrencyNames {
		quoted := regexp.QuoteMeta(name)
		out = append(out,
			regexp.MustCompile(`(?i)`+quoted+`\s*[:：]\s*([\d,.]+)`),
			regexp.MustCompile(`(?i)([\d,.]+)\s*个`+quoted),
		)
	}
	return out
}

// hourly-accrual wording: a small number near these phrases is the
// per-hour rate, not the balance
var hourlyContext = []string{"时魔", "每小时"}

var inviteRowKeywords = []string{
	"邀请名额", "邀請名額", "invite",
	"探视权", "探視權", "查看权", "查看權",
	"临时邀请名额", "臨時邀請名額", "临时探视",
}

var inviteRowExclusions = []string{
	"魔力每小时", "每小时能获取", "当前每小时", "时魔",
	"纯做种", "做种时魔", "做种积分", "单种魔力",
}

var temporaryKeywords = []string{"临时", "臨時", "temporary"}

var priceHeaderKeywords = append([]string{"价格", "售价", "price"}, textutil.CurrencyNames...)

var priceValueRegex = regexp.MustCompile(`([\d,.]+)`)

// implausiblePrice filters values that are really per-hour accrual
// rates leaking into the match; shop invite prices start in the
// thousands on every observed site.
const implausiblePrice = 100

// parseWallet reads the balance and invite prices off the bonus-shop
// page. Everything is best-effort: a page this fails on simply
// contributes nothing to the invite status.
func parseWallet(ctx context.Context, doc *goquery.Document) Wallet {
	ctx, span := tracer.Start(ctx, "parseWallet")
	defer span.End()

	var wallet Wallet
	pageText := doc.Text()

	for _, re := range balanceRegexes {
		groups := re.FindStringSubmatchIndex(pageText)
		if groups == nil {
			continue
		}
		raw := pageText[groups[2]:groups[3]]
		value, ok := sizeutil.ParseRatio(raw)
		if !ok || value == 0 {
			continue
		}
		if value < implausiblePrice && nearHourlyWording(pageText, groups[2]) {
			slog.DebugContext(ctx, "rejecting balance candidate near hourly wording", "value", value)
			continue
		}
		wallet.Bonus = value
		span.SetAttributes(attribute.Float64("bonus", value))
		break
	}

	parseInvitePrices(ctx, doc, &wallet)
	return wallet
}

func nearHourlyWording(pageText string, at int) bool {
	start := at - 150
	if start < 0 {
		start = 0
	}
	end := at + 150
	if end > len(pageText) {
		end = len(pageText)
	}
	window := pageText[start:end]
	for _, marker := range hourlyContext {
		if strings.Contains(window, marker) {
			return true
		}
	}
	return false
}

func parseInvitePrices(ctx context.Context, doc *goquery.Document, wallet *Wallet) {
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		headerText := strings.ToLower(table.Find("td, th").Text())
		if !textutil.MatchName(headerText, textutil.CurrencyNames) {
			return
		}

		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() < 3 {
				return
			}
			rowText := strings.ToLower(row.Text())
			if !containsAny(rowText, inviteRowKeywords) || containsAny(rowText, inviteRowExclusions) {
				return
			}

			price, ok := extractPrice(cells)
			if !ok {
				return
			}
			if price < implausiblePrice {
				slog.DebugContext(ctx, "ignoring implausible invite price", "price", price)
				return
			}

			if containsAny(rowText, temporaryKeywords) {
				wallet.TemporaryInvitePrice = price
			} else {
				wallet.PermanentInvitePrice = price
			}
		})
	})
}

// extractPrice reads the cell following a price/currency header cell,
// defaulting to the third cell when no header matches.
func extractPrice(cells *goquery.Selection) (float64, bool) {
	priceCell := cells.Eq(2)
	cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
		if containsAny(strings.ToLower(cell.Text()), priceHeaderKeywords) && i+1 < cells.Length() {
			priceCell = cells.Eq(i + 1)
			return false
		}
		return true
	})

	groups := priceValueRegex.FindStringSubmatch(priceCell.Text())
	if groups == nil {
		return 0, false
	}
	value, ok := sizeutil.ParseRatio(groups[1])
	if !ok || value <= 0 {
		return 0, false
	}
	return value, true
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// applyWallet merges the wallet read into the invite status. When the
// balance covers at least one shop invite, purchasability alone can
// flip CanInvite for an account with no remaining quota, with the
// purchasable quantities spelled out in the reason.
func applyWallet(status *tracker.InviteStatus, wallet Wallet) {
	status.Bonus = wallet.Bonus
	status.PermanentInvitePrice = wallet.PermanentInvitePrice
	status.TemporaryInvitePrice = wallet.TemporaryInvitePrice

	if wallet.Bonus <= 0 {
		return
	}

	canBuyPermanent := 0
	canBuyTemporary := 0
	if wallet.PermanentInvitePrice > 0 {
		canBuyPermanent = int(wallet.Bonus / wallet.PermanentInvitePrice)
	}
	if wallet.TemporaryInvitePrice > 0 {
		canBuyTemporary = int(wallet.Bonus / wallet.TemporaryInvitePrice)
	}
	if canBuyPermanent == 0 && canBuyTemporary == 0 {
		return
	}

	var methods []string
	if canBuyTemporary > 0 {
		methods = append(methods, fmt.Sprintf("临时邀请(%d个,%.0f魔力/个)", canBuyTemporary, wallet.TemporaryInvitePrice))
	}
	if canBuyPermanent > 0 {
		methods = append(methods, fmt.Sprintf("永久邀请(%d个,%.0f魔力/个)", canBuyPermanent, wallet.PermanentInvitePrice))
	}
	method := strings.Join(methods, ",")

	if !status.CanInvite && status.Reason != "" {
		status.Reason += fmt.Sprintf("，但您的魔力值(%.1f)可购买%s", wallet.Bonus, method)
		if status.PermanentCount == 0 && status.TemporaryCount == 0 {
			status.CanInvite = true
		}
	} else if status.Reason != "" {
		status.Reason += fmt.Sprintf("，魔力值(%.1f)可购买%s", wallet.Bonus, method)
	}
}
