// Package crawler scrapes fussball.de club, team, game and table pages into
// structured data. All page and fragment downloads go through the HTTP cache;
// the crawler itself is stateless.
package crawler

// Team is one club team as listed on the club teams page.
type Team struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	FussballDeURL string `json:"fussball_de_url"`
}

// TableEntry is one row of a league standings table.
type TableEntry struct {
	Place          int    `json:"place"`
	Team           string `json:"team"`
	Img            string `json:"img"`
	Games          int    `json:"games"`
	Won            int    `json:"won"`
	Draw           int    `json:"draw"`
	Lost           int    `json:"lost"`
	Goal           string `json:"goal"`
	GoalDifference int    `json:"goal_difference"`
	Points         int    `json:"points"`
	IsPromotion    bool   `json:"is_promotion"`
	IsRelegation   bool   `json:"is_relegation"`
}

// Table is a full league standings table.
type Table struct {
	Entries []TableEntry `json:"entries"`
}

// MatchEvent is one entry of a game's match course. Type is one of "goal",
// "yellow-card", "red-card", "substitution" or "unknown".
type MatchEvent struct {
	Time        string `json:"time"`
	Type        string `json:"type"`
	Team        string `json:"team"`
	Description string `json:"description,omitempty"`
	Score       string `json:"score,omitempty"`
}

// Game is one fixture, past or future.
type Game struct {
	ID          string       `json:"id"`
	DatetimeUTC string       `json:"datetime_utc"`
	Competition string       `json:"competition"`
	AgeGroup    string       `json:"age_group,omitempty"`
	HomeTeam    string       `json:"home_team"`
	HomeLogo    string       `json:"home_logo"`
	AwayTeam    string       `json:"away_team"`
	AwayLogo    string       `json:"away_logo"`
	Status      string       `json:"status,omitempty"`
	HomeScore   string       `json:"home_score,omitempty"`
	AwayScore   string       `json:"away_score,omitempty"`
	Location    string       `json:"location,omitempty"`
	LocationURL string       `json:"location_url,omitempty"`
	MatchEvents []MatchEvent `json:"match_events"`
}

// ClubSearchResult is one hit of the club search.
type ClubSearchResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logo_url"`
	City    string `json:"city"`
}

// TeamWithDetails is a team expanded with its standings and fixtures,
// assembled by the aggregate builder.
type TeamWithDetails struct {
	Team
	Table     *Table `json:"table"`
	PrevGames []Game `json:"prev_games"`
	NextGames []Game `json:"next_games"`
}

// ClubInfo is the club-level slice of an aggregate: the team list plus the
// club-wide fixture windows.
type ClubInfo struct {
	Teams     []Team `json:"teams"`
	PrevGames []Game `json:"prev_games"`
	NextGames []Game `json:"next_games"`
}

// TeamInfo is the team-level slice of an aggregate.
type TeamInfo struct {
	Table     *Table `json:"table"`
	PrevGames []Game `json:"prev_games"`
	NextGames []Game `json:"next_games"`
}

// FullClubInfo is the complete prewarmed aggregate for one club.
type FullClubInfo struct {
	ClubPrevGames []Game            `json:"club_prev_games"`
	ClubNextGames []Game            `json:"club_next_games"`
	Teams         []TeamWithDetails `json:"teams"`
}
