package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// GameByID scrapes a single game's detail page.
func (c *Crawler) GameByID(ctx context.Context, gameID string) (*Game, error) {
	doc, err := c.document(ctx, c.base+"/spiel/-/spiel/"+gameID, c.ttl.Games)
	if err != nil {
		return nil, err
	}
	stage := doc.Find("section#stage").First()
	if stage.Length() == 0 {
		return nil, fmt.Errorf("game %s: no stage section", gameID)
	}

	game := &Game{
		ID:          gameID,
		Competition: "Unknown",
		DatetimeUTC: time.Now().UTC().Format(time.RFC3339),
		MatchEvents: []MatchEvent{},
	}
	if comp := strings.TrimSpace(stage.Find(".competition").First().Text()); comp != "" {
		game.Competition = comp
	}

	home := stage.Find("div.team-home").First()
	if home.Length() == 0 {
		home = stage.Find("div.team-left").First()
	}
	away := stage.Find("div.team-away").First()
	if away.Length() == 0 {
		away = stage.Find("div.team-right").First()
	}
	game.HomeTeam = strings.TrimSpace(home.Find(".team-name").Text())
	game.AwayTeam = strings.TrimSpace(away.Find(".team-name").Text())
	game.HomeLogo = logoFrom(home)
	game.AwayLogo = logoFrom(away)

	if result := stage.Find("div.result").First(); result.Length() > 0 && len(result.Nodes) > 0 {
		decoded := c.dec.DecodeFragment(ctx, result.Nodes[0])
		if h, a, ok := splitScore(decoded); ok {
			game.HomeScore = h
			game.AwayScore = a
		}
	}

	if loc := stage.Find("a.location").First(); loc.Length() > 0 {
		game.Location = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(loc.Text()), "Rasenplatz, "))
		if href, ok := loc.Attr("href"); ok {
			game.LocationURL = c.absURL(href)
		}
	}

	if events, err := c.MatchCourse(ctx, gameID); err == nil {
		game.MatchEvents = events
	}
	return game, nil
}

// MatchCourse scrapes the timeline of goals, cards and substitutions from the
// match-course fragment. Games without a published course yield an empty slice.
func (c *Crawler) MatchCourse(ctx context.Context, gameID string) ([]MatchEvent, error) {
	doc, err := c.document(ctx, c.base+"/ajax.match.course/-/mode/PAGE/spiel/"+gameID, c.ttl.Games)
	if err != nil {
		return nil, err
	}

	events := []MatchEvent{}
	doc.Find("#match_course_body .row-event").Each(func(_ int, row *goquery.Selection) {
		ev := MatchEvent{Team: "away", Type: "unknown"}
		if row.HasClass("event-left") {
			ev.Team = "home"
		}
		ev.Time = strings.TrimSpace(row.Find(".column-time .valign-inner").First().Text())

		if eventCol := row.Find(".column-event").First(); eventCol.Length() > 0 && len(eventCol.Nodes) > 0 {
			ev.Type = "goal"
			ev.Score = c.dec.DecodeFragment(ctx, eventCol.Nodes[0])
		}
		if row.Find(".icon-card.yellow-card").Length() > 0 {
			ev.Type = "yellow-card"
			ev.Description = "Gelbe Karte"
		}
		if row.Find(".icon-card.red-card").Length() > 0 {
			ev.Type = "red-card"
			ev.Description = "Rote Karte"
		}
		if row.Find(".icon-substitute").Length() > 0 {
			ev.Type = "substitution"
			ev.Description = "Auswechslung"
			if text := c.substitutionText(ctx, row); text != "" {
				ev.Description = text
			}
		}
		if ev.Description == "" {
			ev.Description = c.playerDescription(ctx, row)
		}
		events = append(events, ev)
	})
	return events, nil
}

// substitutionText resolves the two players of a substitution through their
// profile pages and renders "incoming für outgoing". Empty when no profile
// link resolves.
func (c *Crawler) substitutionText(ctx context.Context, row *goquery.Selection) string {
	names := []string{}
	row.Find(".column-player .substitute a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !strings.Contains(href, "spielerprofil") {
			return
		}
		if name := c.profileName(ctx, href); name != "" {
			names = append(names, name)
		}
	})
	if len(names) == 2 {
		return names[0] + " für " + names[1]
	}
	return strings.Join(names, " / ")
}

// playerDescription names the player behind an event. The event row only
// carries obfuscated text, so the name comes from the linked profile page;
// rows without a profile link fall back to decoding the row text.
func (c *Crawler) playerDescription(ctx context.Context, row *goquery.Selection) string {
	col := row.Find(".column-player").First()
	if col.Length() == 0 {
		return ""
	}
	if link := col.Find("a[href]").First(); link.Length() > 0 {
		if href, _ := link.Attr("href"); strings.Contains(href, "spielerprofil") {
			return c.profileName(ctx, href)
		}
	}
	if len(col.Nodes) > 0 {
		return c.dec.DecodeFragment(ctx, col.Nodes[0])
	}
	return ""
}

// profileName fetches a player's profile page and reads the display name,
// which the profile renders in plain text.
func (c *Crawler) profileName(ctx context.Context, href string) string {
	doc, err := c.document(ctx, c.absURL(href), c.ttl.Games)
	if err != nil {
		c.log.Debug("player profile unavailable", zap.String("url", href), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(doc.Find("p.profile-name").First().Text())
}
