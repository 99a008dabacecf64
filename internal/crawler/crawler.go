package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Zetabytes/fussball-de-api/internal/cache"
	"github.com/Zetabytes/fussball-de-api/internal/font"
)

// BaseURL is the production site root. Tests substitute an httptest server.
const BaseURL = "https://www.fussball.de"

// Fetcher is the slice of the HTTP cache the crawler needs.
type Fetcher interface {
	Fetch(ctx context.Context, url, method string, ttl time.Duration) (*cache.Response, error)
}

// TTLs are the cache lifetimes per content class. Fixture lists change most
// often, standings less so, team rosters rarely.
type TTLs struct {
	Games time.Duration
	Table time.Duration
	Teams time.Duration
}

// Crawler turns fussball.de pages into structured data.
type Crawler struct {
	fetcher Fetcher
	dec     *font.Decoder
	ttl     TTLs
	base    string
	log     *zap.Logger
}

// New constructs a Crawler. baseURL defaults to the production site.
func New(fetcher Fetcher, dec *font.Decoder, baseURL string, ttl TTLs, logger *zap.Logger) *Crawler {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{fetcher: fetcher, dec: dec, ttl: ttl, base: baseURL, log: logger}
}

func (c *Crawler) document(ctx context.Context, url string, ttl time.Duration) (*goquery.Document, error) {
	resp, err := c.fetcher.Fetch(ctx, url, "GET", ttl)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}

var logoFormatRe = regexp.MustCompile(`format/\d+`)

// normalizeLogoURL rewrites a responsive logo URL to the fixed format variant
// and makes protocol-relative URLs absolute.
func normalizeLogoURL(raw string) string {
	raw = logoFormatRe.ReplaceAllString(raw, "format/9")
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}

// absURL turns a site-relative href into an absolute one.
func (c *Crawler) absURL(href string) string {
	if strings.HasPrefix(href, "/") {
		return c.base + href
	}
	return href
}

func lastPathSegment(raw string) string {
	raw = strings.TrimRight(raw, "/")
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		return raw[i+1:]
	}
	return raw
}

// ClubTeams lists the teams registered for a club in the current season.
func (c *Crawler) ClubTeams(ctx context.Context, clubID string) ([]Team, error) {
	pageURL := c.base + "/ajax.club.teams/-/action/search/id/" + clubID
	doc, err := c.document(ctx, pageURL, c.ttl.Teams)
	if err != nil {
		return nil, err
	}

	teams := []Team{}
	doc.Find("div.item").Each(func(_ int, item *goquery.Selection) {
		link := item.Find("h4 a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		name := strings.TrimSpace(link.Text())
		if name == "" {
			return
		}
		teams = append(teams, Team{
			ID:            lastPathSegment(href),
			Name:          name,
			FussballDeURL: c.absURL(href),
		})
	})
	return teams, nil
}

// SearchClubs searches the site-wide club index.
func (c *Crawler) SearchClubs(ctx context.Context, query string) ([]ClubSearchResult, error) {
	pageURL := c.base + "/suche/-/text/" + url.PathEscape(query) + "/restriction/CLUB_AND_TEAM"
	doc, err := c.document(ctx, pageURL, c.ttl.Teams)
	if err != nil {
		return nil, err
	}

	results := []ClubSearchResult{}
	doc.Find("div#clublist li").Each(func(_ int, item *goquery.Selection) {
		link := item.Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		name := strings.TrimSpace(item.Find("p.name").Text())
		if name == "" {
			return
		}
		// The sub line uses non-breaking spaces around the separator.
		city := strings.TrimSpace(strings.ReplaceAll(item.Find("p.sub").Text(), "\u00a0", " "))

		logo := ""
		if img, ok := item.Find("img").First().Attr("src"); ok {
			logo = normalizeLogoURL(img)
		}
		results = append(results, ClubSearchResult{
			ID:      lastPathSegment(href),
			Name:    name,
			LogoURL: logo,
			City:    city,
		})
	})
	return results, nil
}

// TeamTable scrapes the league standings for a team's current competition.
// Returns nil when the competition publishes no table.
func (c *Crawler) TeamTable(ctx context.Context, teamID string) (*Table, error) {
	pageURL := c.base + "/ajax.team.table/-/team-id/" + teamID
	doc, err := c.document(ctx, pageURL, c.ttl.Table)
	if err != nil {
		return nil, err
	}

	entries := []TableEntry{}
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		if row.ParentsFiltered("thead").Length() > 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 10 {
			return
		}

		entry := TableEntry{
			Place:          atoiLoose(strings.TrimSuffix(strings.TrimSpace(cells.Eq(1).Text()), ".")),
			Team:           strings.TrimSpace(cells.Eq(2).Text()),
			Games:          atoiLoose(cells.Eq(3).Text()),
			Won:            atoiLoose(cells.Eq(4).Text()),
			Draw:           atoiLoose(cells.Eq(5).Text()),
			Lost:           atoiLoose(cells.Eq(6).Text()),
			Goal:           strings.TrimSpace(cells.Eq(7).Text()),
			GoalDifference: atoiLoose(cells.Eq(8).Text()),
			Points:         atoiLoose(cells.Eq(9).Text()),
		}
		if img, ok := cells.Eq(2).Find("img").First().Attr("src"); ok {
			entry.Img = normalizeLogoURL(img)
		}
		class, _ := row.Attr("class")
		entry.IsPromotion = strings.Contains(class, "promotion")
		entry.IsRelegation = strings.Contains(class, "relegation")
		entries = append(entries, entry)
	})

	if len(entries) == 0 {
		return nil, nil
	}
	return &Table{Entries: entries}, nil
}

// atoiLoose parses an integer out of scraped cell text, treating anything
// unparsable as zero.
func atoiLoose(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
