package invites

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"invitarium/lib/tracker"
	"invitarium/services/invites/db"
	"log/slog"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/invites")

type Service struct {
	db    *sql.DB
	qry   *db.Queries
	sites []tracker.SiteProfile
}

func NewService(ctx context.Context, database *sql.DB, sites []tracker.SiteProfile) (Service, error) {
	_, err := database.ExecContext(ctx, db.Schema)
	if err != nil {
		return Service{}, err
	}
	return Service{
		db:    database,
		qry:   db.New(database),
		sites: sites,
	}, nil
}

func (s Service) Sites() []tracker.SiteProfile {
	return s.sites
}

func (s Service) profile(name string) (tracker.SiteProfile, bool) {
	for _, site := range s.sites {
		if strings.EqualFold(site.Name, name) {
			return site, true
		}
	}
	return tracker.SiteProfile{}, false
}

// Suggest returns the configured site name closest to the given one,
// for correcting typos in user input.
func (s Service) Suggest(name string) string {
	best := ""
	bestDistance := 4
	for _, site := range s.sites {
		distance := matchr.DamerauLevenshtein(
			strings.ToLower(name),
			strings.ToLower(site.Name),
		)
		if distance < bestDistance {
			best = site.Name
			bestDistance = distance
		}
	}
	return best
}

func validateProfile(profile tracker.SiteProfile) string {
	if profile.Url == "" {
		return "站点信息不完整，缺少站点URL"
	}
	if profile.ApiKey != "" || profile.Authorization != "" {
		return ""
	}
	if profile.Cookie == "" {
		return "站点信息不完整，请检查站点的Cookie和UA是否正确"
	}
	return ""
}

// ParseSite runs a full parse cycle for one configured site and
// persists the outcome, success or not. The returned result is
// always structured.
func (s Service) ParseSite(ctx context.Context, name string) tracker.ParseResult {
	ctx, span := tracer.Start(ctx, "ParseSite")
	defer span.End()
	span.SetAttributes(attribute.String("site", name))

	profile, ok := s.profile(name)
	if !ok {
		message := fmt.Sprintf("站点 %s 未配置", name)
		if suggestion := s.Suggest(name); suggestion != "" {
			message = fmt.Sprintf("站点 %s 未配置，是否想选择 %s?", name, suggestion)
		}
		span.SetStatus(codes.Error, "site not configured")
		return tracker.Failure(tracker.FailureSiteNotSelected, message)
	}

	if message := validateProfile(profile); message != "" {
		result := tracker.Failure(tracker.FailureSiteConfigIncomplete, message)
		s.store(ctx, profile.Name, result)
		return result
	}

	handler := Dispatch(profile.Url)
	span.SetAttributes(attribute.String("handler", handler.Name()))
	slog.InfoContext(ctx, "parsing site", "site", profile.Name, "handler", handler.Name())

	result := handler.Parse(ctx, profile)
	if result.Error != "" {
		span.SetStatus(codes.Error, result.Error)
	}
	s.store(ctx, profile.Name, result)
	return result
}

func (s Service) store(ctx context.Context, site string, result tracker.ParseResult) {
	data, err := json.Marshal(result)
	if err != nil {
		slog.ErrorContext(ctx, "failed to serialize result", "site", site, "err", err)
		return
	}
	err = s.qry.UpsertSiteResult(ctx, db.SiteResult{
		Site:       site,
		Data:       string(data),
		LastUpdate: time.Now().Unix(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to persist result", "site", site, "err", err)
	}
}

type RefreshStats struct {
	Success int
	Failed  int
}

// RefreshAll parses every configured site in sequence. One broken
// site never stops the rest; its failure is stored like any other
// result.
func (s Service) RefreshAll(ctx context.Context) RefreshStats {
	ctx, span := tracer.Start(ctx, "RefreshAll")
	defer span.End()

	var stats RefreshStats
	for _, site := range s.sites {
		result := s.ParseSite(ctx, site.Name)
		if result.Error != "" {
			slog.WarnContext(ctx, "site refresh failed", "site", site.Name, "err", result.Error)
			stats.Failed++
			continue
		}
		slog.InfoContext(ctx, "site refreshed",
			"site", site.Name,
			"can_invite", result.InviteStatus.CanInvite,
			"invitees", len(result.Invitees),
		)
		stats.Success++
	}

	span.SetAttributes(
		attribute.Int("success", stats.Success),
		attribute.Int("failed", stats.Failed),
	)
	return stats
}

// CachedResult is a stored parse cycle along with when it ran.
type CachedResult struct {
	Site       string
	Result     tracker.ParseResult
	LastUpdate time.Time
}

func (s Service) Cached(ctx context.Context, name string) (CachedResult, error) {
	row, err := s.qry.GetSiteResult(ctx, name)
	if err != nil {
		return CachedResult{}, err
	}
	return decodeCached(row)
}

func (s Service) CachedAll(ctx context.Context) ([]CachedResult, error) {
	rows, err := s.qry.ListSiteResults(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CachedResult, 0, len(rows))
	for _, row := range rows {
		cached, err := decodeCached(row)
		if err != nil {
			return nil, err
		}
		out = append(out, cached)
	}
	return out, nil
}

func decodeCached(row db.SiteResult) (CachedResult, error) {
	var result tracker.ParseResult
	err := json.Unmarshal([]byte(row.Data), &result)
	if err != nil {
		return CachedResult{}, fmt.Errorf("stored result for %s is corrupt: %w", row.Site, err)
	}
	return CachedResult{
		Site:       row.Site,
		Result:     result,
		LastUpdate: time.Unix(row.LastUpdate, 0),
	}, nil
}
