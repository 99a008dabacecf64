package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// berlin is the site's display timezone; all scraped kickoff times are
// converted to UTC.
var berlin = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		return time.FixedZone("CET", 1*60*60)
	}
	return loc
}()

// ClubNextGames lists a club's upcoming fixtures across all its teams.
func (c *Crawler) ClubNextGames(ctx context.Context, clubID string) ([]Game, error) {
	return c.games(ctx, c.base+"/ajax.club.next.games/-/id/"+clubID+"/mode/PAGE")
}

// ClubPrevGames lists a club's recent results across all its teams.
func (c *Crawler) ClubPrevGames(ctx context.Context, clubID string) ([]Game, error) {
	return c.games(ctx, c.base+"/ajax.club.prev.games/-/id/"+clubID+"/mode/PAGE")
}

// TeamNextGames lists one team's upcoming fixtures.
func (c *Crawler) TeamNextGames(ctx context.Context, teamID string) ([]Game, error) {
	return c.games(ctx, c.base+"/ajax.team.next.games/-/mode/PAGE/team-id/"+teamID)
}

// TeamPrevGames lists one team's recent results.
func (c *Crawler) TeamPrevGames(ctx context.Context, teamID string) ([]Game, error) {
	return c.games(ctx, c.base+"/ajax.team.prev.games/-/mode/PAGE/team-id/"+teamID)
}

// gameInfo carries the date-row context down to the fixture rows below it.
type gameInfo struct {
	datetimeUTC string
	ageGroup    string
	competition string
}

// games scrapes one fixture fragment. The markup interleaves date header rows
// with fixture rows; a header's kickoff time, age group and competition apply
// to every fixture row until the next header.
func (c *Crawler) games(ctx context.Context, pageURL string) ([]Game, error) {
	resp, err := c.fetcher.Fetch(ctx, pageURL, "GET", c.ttl.Games)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	if len(strings.TrimSpace(resp.Text())) == 0 {
		return []Game{}, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Text()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	games := []Game{}
	var info *gameInfo
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		class, _ := row.Attr("class")
		if strings.Contains(class, "visible-small") {
			parsed, hadCell := c.parseDateRow(row)
			if hadCell {
				info = parsed
			}
			return
		}
		if row.Find("td.column-club").Length() == 0 {
			return
		}
		// Rows under an unparsable date header carry no usable kickoff
		// context and are skipped wholesale.
		if info == nil {
			return
		}
		game := c.parseGameRow(ctx, row, info)
		if game != nil {
			games = append(games, *game)
		}
	})
	return games, nil
}

// parseDateRow extracts kickoff time, age group and competition from a date
// header row. The second return is false when the row carries no cell at all,
// in which case the previous header stays in effect.
func (c *Crawler) parseDateRow(row *goquery.Selection) (*gameInfo, bool) {
	cell := row.Find("td").First()
	if cell.Length() == 0 {
		return nil, false
	}
	text := strings.TrimSpace(cell.Text())
	parts := strings.Split(text, " | ")

	info := &gameInfo{}
	switch len(parts) {
	case 3:
		info.ageGroup = strings.TrimSpace(parts[1])
		info.competition = strings.TrimSpace(parts[2])
	case 2:
		info.competition = strings.TrimSpace(parts[1])
	}

	dt, err := parseKickoff(parts[0])
	if err != nil {
		c.log.Debug("unparsable date row", zap.String("text", text), zap.Error(err))
		return nil, true
	}
	info.datetimeUTC = dt
	return info, true
}

// parseKickoff converts a display timestamp like
// "So, 12.05.2024 - 15:00 Uhr" into an RFC 3339 UTC string.
func parseKickoff(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, ", "); i >= 0 {
		raw = raw[i+2:]
	}
	raw = strings.TrimSuffix(raw, " Uhr")
	raw = strings.ReplaceAll(raw, " - ", " ")

	t, err := time.ParseInLocation("02.01.2006 15:04", raw, berlin)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(time.RFC3339), nil
}

// parseGameRow turns one fixture row into a Game, pulling kickoff context
// from the preceding date header.
func (c *Crawler) parseGameRow(ctx context.Context, row *goquery.Selection, info *gameInfo) *Game {
	homeCell := row.Find("td.column-club-left").First()
	awayCell := row.Find("td.column-club-right").First()
	if homeCell.Length() == 0 || awayCell.Length() == 0 {
		clubs := row.Find("td.column-club")
		if clubs.Length() < 2 {
			return nil
		}
		homeCell = clubs.Eq(0)
		awayCell = clubs.Eq(1)
	}

	game := &Game{
		MatchEvents: []MatchEvent{},
		DatetimeUTC: info.datetimeUTC,
		AgeGroup:    info.ageGroup,
		Competition: info.competition,
	}
	game.HomeTeam = strings.TrimSpace(homeCell.Find(".club-name").Text())
	game.AwayTeam = strings.TrimSpace(awayCell.Find(".club-name").Text())
	game.HomeLogo = logoFrom(homeCell)
	game.AwayLogo = logoFrom(awayCell)

	scoreCell := row.Find("td.column-score").First()
	if link := scoreCell.Find("a").First(); link.Length() > 0 {
		if href, ok := link.Attr("href"); ok {
			game.ID = lastPathSegment(href)
			c.fillGameDetails(ctx, game)
		}
	}
	// Only games with a real site ID publish a match course; composite
	// fallback IDs never resolve on the site.
	if game.ID != "" {
		if events, err := c.MatchCourse(ctx, game.ID); err == nil {
			game.MatchEvents = events
		} else {
			c.log.Debug("match course unavailable",
				zap.String("game_id", game.ID), zap.Error(err))
		}
	}
	if game.ID == "" {
		game.ID = fmt.Sprintf("%s_%s_vs_%s", game.DatetimeUTC, game.HomeTeam, game.AwayTeam)
	}

	if status := strings.TrimSpace(scoreCell.Find("span.info-text").Text()); status != "" {
		game.Status = status
	}

	if scoreCell.Length() > 0 && len(scoreCell.Nodes) > 0 {
		decoded := c.dec.DecodeFragment(ctx, scoreCell.Nodes[0])
		if home, away, ok := splitScore(decoded); ok {
			game.HomeScore = home
			game.AwayScore = away
		}
	}
	return game
}

// fillGameDetails fetches the game detail page for the venue. Detail fetch
// failures leave the listing data intact.
func (c *Crawler) fillGameDetails(ctx context.Context, game *Game) {
	doc, err := c.document(ctx, c.base+"/spiel/-/spiel/"+game.ID, c.ttl.Games)
	if err != nil {
		c.log.Debug("game details unavailable",
			zap.String("game_id", game.ID), zap.Error(err))
		return
	}
	loc := doc.Find("section#stage a.location").First()
	if loc.Length() == 0 {
		return
	}
	game.Location = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(loc.Text()), "Rasenplatz, "))
	if href, ok := loc.Attr("href"); ok {
		game.LocationURL = c.absURL(href)
	}
}

func logoFrom(cell *goquery.Selection) string {
	if span := cell.Find("span[data-responsive-image]").First(); span.Length() > 0 {
		if raw, ok := span.Attr("data-responsive-image"); ok {
			return normalizeLogoURL(raw)
		}
	}
	if img, ok := cell.Find("img").First().Attr("src"); ok {
		return normalizeLogoURL(img)
	}
	return ""
}

// splitScore splits a decoded "2:1" score into its halves. Placeholder
// scores without a separator (future games render "-:-") report false.
func splitScore(decoded string) (home, away string, ok bool) {
	decoded = strings.TrimSpace(decoded)
	i := strings.Index(decoded, ":")
	if i < 0 {
		return "", "", false
	}
	home = strings.TrimSpace(decoded[:i])
	away = strings.TrimSpace(decoded[i+1:])
	if home == "" || away == "" || home == "-" || away == "-" {
		return "", "", false
	}
	return home, away, true
}
