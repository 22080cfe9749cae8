package db

import (
	"context"
	"database/sql"
	_ "embed"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Queries struct {
	db *sql.DB
}

func New(database *sql.DB) *Queries {
	return &Queries{db: database}
}

// SiteResult stores one parse cycle wholesale: Data is the
// serialized result and LastUpdate a unix timestamp.
type SiteResult struct {
	Site       string
	Data       string
	LastUpdate int64
}

const upsertSiteResult = `
INSERT INTO site_results (site, data, last_update)
VALUES (?, ?, ?)
ON CONFLICT (site) DO UPDATE SET
    data = excluded.data,
    last_update = excluded.last_update
`

func (q *Queries) UpsertSiteResult(ctx context.Context, arg SiteResult) error {
	_, err := q.db.ExecContext(ctx, upsertSiteResult, arg.Site, arg.Data, arg.LastUpdate)
	return err
}

const getSiteResult = `
SELECT site, data, last_update FROM site_results WHERE site = ?
`

func (q *Queries) GetSiteResult(ctx context.Context, site string) (SiteResult, error) {
	row := q.db.QueryRowContext(ctx, getSiteResult, site)
	var out SiteResult
	err := row.Scan(&out.Site, &out.Data, &out.LastUpdate)
	return out, err
}

const listSiteResults = `
SELECT site, data, last_update FROM site_results ORDER BY site
`

func (q *Queries) ListSiteResults(ctx context.Context) ([]SiteResult, error) {
	rows, err := q.db.QueryContext(ctx, listSiteResults)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SiteResult
	for rows.Next() {
		var result SiteResult
		err := rows.Scan(&result.Site, &result.Data, &result.LastUpdate)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

const deleteSiteResult = `
DELETE FROM site_results WHERE site = ?
`

func (q *Queries) DeleteSiteResult(ctx context.Context, site string) error {
	_, err := q.db.ExecContext(ctx, deleteSiteResult, site)
	return err
}
