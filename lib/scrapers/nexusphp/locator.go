package nexusphp

import (
	"github.com/PuerkitoBio/goquery"
)

// Every installation rearranges its markup, so regions are found by
// ordered fallback chains: the first candidate that matches anything
// wins and later candidates are not tried.

// locateQuotaBlock returns the account-summary container holding the
// invite counters, or nil when the page has none (the classifier
// then works on whole-document text).
func locateQuotaBlock(doc *goquery.Document) *goquery.Selection {
	block := doc.Find("#info_block")
	if block.Length() > 0 {
		return block
	}
	return nil
}

// locateRosterTables returns candidate roster tables in preference
// order: the bordered member table most sites use, then the table
// nested under the main torrents container, then any table big
// enough to plausibly hold rows. An empty result is not an error;
// it reads as an empty roster.
func locateRosterTables(doc *goquery.Document) []*goquery.Selection {
	bordered := doc.Find(`table[border="1"]`)
	if bordered.Length() > 0 {
		return splitSelection(bordered)
	}

	nested := doc.Find("table.main table.torrents")
	if nested.Length() > 0 {
		return splitSelection(nested)
	}

	var tables []*goquery.Selection
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		if table.Find("tr").Length() > 2 {
			tables = append(tables, table)
		}
	})
	return tables
}

// hasAnyTable distinguishes "no roster" from "not a tracker page at
// all": a document with zero tables is likely a login or error page.
func hasAnyTable(doc *goquery.Document) bool {
	return doc.Find("table").Length() > 0
}

func splitSelection(sel *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}
