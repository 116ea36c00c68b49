package client

import (
	"fmt"
	"strconv"
	"strings"
)

// Game is a board game or expansion known to the backend.
type Game struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	ImageURL         string   `json:"imageUrl,omitempty"`
	YearPublished    int      `json:"yearPublished,omitempty"`
	IsExpansion      bool     `json:"isExpansion,omitempty"`
	BggID            int      `json:"bggId,omitempty"`
	BggRanking       int      `json:"bggRanking,omitempty"`
	AverageRating    float64  `json:"averageRating,omitempty"`
	AverageWeight    float64  `json:"averageWeight,omitempty"`
	MinPlayers       int      `json:"minPlayers,omitempty"`
	MaxPlayers       int      `json:"maxPlayers,omitempty"`
	SupportsSoloMode bool     `json:"supportsSoloMode,omitempty"`
	Categories       []string `json:"categories,omitempty"`
	BaseGameID       *string  `json:"baseGameId,omitempty"`
	BaseGameBggID    *int     `json:"baseGameBggId,omitempty"`
	Expansions       []Game   `json:"expansions,omitempty"`
}

// GameSuggestion is a lightweight search hit, always keyed by BGG id.
type GameSuggestion struct {
	BggID         int    `json:"bggId"`
	Name          string `json:"name"`
	YearPublished int    `json:"yearPublished,omitempty"`
	ImageURL      string `json:"imageUrl,omitempty"`
}

type GameMode string

const (
	ModeSolo        GameMode = "SOLO"
	ModeCooperative GameMode = "COOPERATIVE"
	ModeCompetitive GameMode = "COMPETITIVE"
)

type Expansion struct {
	BggID int    `json:"bggId" validate:"gt=0"`
	Name  string `json:"name" validate:"notblank"`
}

type MatchPlayer struct {
	UserID       string   `json:"userId" validate:"notblank"`
	UserName     string   `json:"userName,omitempty"`
	Score        *float64 `json:"score,omitempty"`
	IsWinner     bool     `json:"isWinner"`
	RankPosition *int     `json:"rankPosition,omitempty" validate:"omitempty,gt=0"`
}

// MatchForm is a match as entered by the user.
type MatchForm struct {
	GameID            string        `json:"gameId" validate:"notblank"`
	GameName          string        `json:"gameName" validate:"notblank"`
	SessionID         string        `json:"sessionId,omitempty"`
	MatchDate         string        `json:"matchDate" validate:"notblank"`
	WinnerID          string        `json:"winnerId,omitempty"`
	IsSoloGame        bool          `json:"isSoloGame"`
	DurationInMinutes *int          `json:"durationInMinutes,omitempty" validate:"omitempty,gt=0"`
	Location          string        `json:"location,omitempty"`
	ScoreSummary      string        `json:"scoreSummary,omitempty"`
	Players           []MatchPlayer `json:"players" validate:"min=1,dive"`
	GameMode          GameMode      `json:"gameMode,omitempty" validate:"omitempty,oneof=SOLO COOPERATIVE COMPETITIVE"`
	Expansions        []Expansion   `json:"expansions,omitempty" validate:"omitempty,dive"`
}

// CreateMatchRequest is the payload POST /Match expects.
type CreateMatchRequest struct {
	GameID            string      `json:"gameId"`
	GameName          string      `json:"gameName"`
	GameSessionID     string      `json:"gameSessionId,omitempty"`
	MatchDate         string      `json:"matchDate"`
	WinnerID          string      `json:"winnerId,omitempty"`
	IsSoloGame        bool        `json:"isSoloGame"`
	DurationInMinutes *int        `json:"durationInMinutes,omitempty"`
	Location          string      `json:"location,omitempty"`
	ScoreSummary      string      `json:"scoreSummary,omitempty"`
	PlayerIDs         []string    `json:"playerIds"`
	GameMode          GameMode    `json:"gameMode,omitempty"`
	Expansions        []Expansion `json:"expansions,omitempty"`
}

// ToCreateRequest flattens players into unique ids and infers the winner
// from the players when WinnerID is not set.
func (f MatchForm) ToCreateRequest() CreateMatchRequest {
	seen := make(map[string]bool, len(f.Players))
	ids := make([]string, 0, len(f.Players))
	winner := f.WinnerID
	for _, p := range f.Players {
		if p.UserID != "" && !seen[p.UserID] {
			seen[p.UserID] = true
			ids = append(ids, p.UserID)
		}
		if winner == "" && p.IsWinner {
			winner = p.UserID
		}
	}
	return CreateMatchRequest{
		GameID:            f.GameID,
		GameName:          f.GameName,
		GameSessionID:     f.SessionID,
		MatchDate:         f.MatchDate,
		WinnerID:          winner,
		IsSoloGame:        f.IsSoloGame,
		DurationInMinutes: f.DurationInMinutes,
		Location:          f.Location,
		ScoreSummary:      f.ScoreSummary,
		PlayerIDs:         ids,
		GameMode:          f.GameMode,
		Expansions:        f.Expansions,
	}
}

// Match is a recorded match.
type Match struct {
	MatchForm
	ID         string `json:"id"`
	WinnerName string `json:"winnerName,omitempty"`
}

// LastMatch is the dashboard summary of the most recent match.
type LastMatch struct {
	Name   string `json:"name"`
	Date   string `json:"date"`
	Winner string `json:"winner"`
}

type SessionPlayer struct {
	UserID      string  `json:"userId"`
	UserName    string  `json:"userName"`
	IsOrganizer bool    `json:"isOrganizer"`
	JoinedAt    string  `json:"joinedAt"`
	LeftAt      *string `json:"leftAt,omitempty"`
}

// Session is a game night grouping players and matches.
type Session struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Organizer string          `json:"organizer"`
	Location  *string         `json:"location,omitempty"`
	StartDate string          `json:"startDate"`
	EndDate   *string         `json:"endDate,omitempty"`
	Players   []SessionPlayer `json:"players"`
	IsActive  bool            `json:"isActive"`
	Matches   []Match         `json:"matches"`
}

type CreateSessionRequest struct {
	Name        string `json:"name" validate:"notblank,max=100"`
	OrganizerID string `json:"organizerId" validate:"notblank"`
	Location    string `json:"location,omitempty" validate:"omitempty,max=200"`
}

// LibraryStatus is how a game sits in a user's library.
type LibraryStatus int

const (
	StatusOwned    LibraryStatus = 1
	StatusPlayed   LibraryStatus = 2
	StatusWishlist LibraryStatus = 3
)

func (s LibraryStatus) String() string {
	switch s {
	case StatusOwned:
		return "Owned"
	case StatusPlayed:
		return "Played"
	case StatusWishlist:
		return "Wishlist"
	default:
		return "Unknown"
	}
}

// Valid reports whether s is one of the known statuses.
func (s LibraryStatus) Valid() bool {
	return s >= StatusOwned && s <= StatusWishlist
}

// ParseLibraryStatus accepts a status name (any case) or its number.
func ParseLibraryStatus(v string) (LibraryStatus, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		if s := LibraryStatus(n); s.Valid() {
			return s, nil
		}
		return 0, fmt.Errorf("unknown library status %d", n)
	}
	for _, s := range []LibraryStatus{StatusOwned, StatusPlayed, StatusWishlist} {
		if strings.EqualFold(v, s.String()) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown library status %q (want owned, played or wishlist)", v)
}

// LibraryEntry is one game in a user's library.
type LibraryEntry struct {
	ID               string        `json:"id"`
	GameID           string        `json:"gameId"`
	BggID            int           `json:"bggId"`
	GameName         string        `json:"gameName"`
	GameImageURL     string        `json:"gameImageUrl,omitempty"`
	Status           LibraryStatus `json:"status"`
	AddedAt          string        `json:"addedAt"`
	LastPlayedAt     *string       `json:"lastPlayedAt,omitempty"`
	TotalTimesPlayed int           `json:"totalTimesPlayed,omitempty"`
	TotalHoursPlayed float64       `json:"totalHoursPlayed,omitempty"`
	PricePaid        *float64      `json:"pricePaid,omitempty"`
	Game             *Game         `json:"game,omitempty"`
}

type AddLibraryEntry struct {
	GameID    string        `json:"gameId" validate:"notblank"`
	GameName  string        `json:"gameName" validate:"notblank"`
	Status    LibraryStatus `json:"status" validate:"min=1,max=3"`
	PricePaid float64       `json:"pricePaid"`
}

type UpdateLibraryEntry struct {
	Status    LibraryStatus `json:"status" validate:"min=1,max=3"`
	PricePaid *float64      `json:"pricePaid,omitempty"`
}

// Friend is the trimmed user record returned by /friendships.
type Friend struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
}
