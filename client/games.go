package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/meepleboard/meeple/pkg/pool"
	"github.com/meepleboard/meeple/pkg/validation"
	"github.com/rs/zerolog/log"
)

const DefaultPageLimit = 10

type GameService struct {
	c *Client
}

func (c *Client) Games() *GameService { return &GameService{c: c} }

// Page selects a window of search results. A zero Limit means DefaultPageLimit.
type Page struct {
	Offset int
	Limit  int
}

func (p Page) query(q string) url.Values {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return url.Values{
		"query":  {q},
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
}

func checkBggID(id int) error {
	if err := validation.ValidateBggID(id); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// GetByID returns a game by its local id.
func (g *GameService) GetByID(ctx context.Context, id string) (*Game, error) {
	if err := validateID("id", id); err != nil {
		return nil, err
	}
	var game Game
	if err := g.c.Get(ctx, "/game/"+url.PathEscape(id), nil, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

// GetByBggID looks a game up locally by BGG id. Any failure yields nil.
func (g *GameService) GetByBggID(ctx context.Context, bggID int) (*Game, error) {
	if err := checkBggID(bggID); err != nil {
		return nil, err
	}
	var game Game
	if err := g.c.Get(ctx, "/game/by-bgg/"+strconv.Itoa(bggID), nil, &game); err != nil {
		log.Debug().Err(err).Int("bgg_id", bggID).Msg("Game not available locally")
		return nil, nil
	}
	if game.ID == "" && game.Name == "" {
		return nil, nil
	}
	return &game, nil
}

// ImportByBggID asks the backend to import a game from BoardGameGeek.
func (g *GameService) ImportByBggID(ctx context.Context, bggID int) (*Game, error) {
	if err := checkBggID(bggID); err != nil {
		return nil, err
	}
	var game Game
	if err := g.c.Post(ctx, "/game/import/"+strconv.Itoa(bggID), nil, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

// SearchOrImportByBggID returns the local game, importing it first if needed.
func (g *GameService) SearchOrImportByBggID(ctx context.Context, bggID int) (*Game, error) {
	local, err := g.GetByBggID(ctx, bggID)
	if err != nil {
		return nil, err
	}
	if local != nil {
		return local, nil
	}
	return g.ImportByBggID(ctx, bggID)
}

// SearchOrImport finds a game by name; the backend imports it when unknown.
func (g *GameService) SearchOrImport(ctx context.Context, name string) (*Game, error) {
	if err := validation.Struct(struct {
		Name string `json:"name" validate:"notblank"`
	}{name}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	var game Game
	if err := g.c.Get(ctx, "/game/search", url.Values{"name": {name}}, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (g *GameService) suggestions(ctx context.Context, path, query string, page Page) ([]GameSuggestion, error) {
	var out []GameSuggestion
	if err := g.c.Get(ctx, path, page.query(query), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *GameService) Suggestions(ctx context.Context, query string, page Page) ([]GameSuggestion, error) {
	return g.suggestions(ctx, "/game/suggestions", query, page)
}

// BaseGameSuggestions searches base games only.
func (g *GameService) BaseGameSuggestions(ctx context.Context, query string, page Page) ([]GameSuggestion, error) {
	return g.suggestions(ctx, "/game/base-search", query, page)
}

func (g *GameService) ExpansionSuggestions(ctx context.Context, query string, page Page) ([]GameSuggestion, error) {
	return g.suggestions(ctx, "/game/expansion-suggestions", query, page)
}

// ExpansionsOfBase lists expansions of the base game with local id baseID.
func (g *GameService) ExpansionsOfBase(ctx context.Context, baseID string) ([]GameSuggestion, error) {
	if err := validateID("baseGameId", baseID); err != nil {
		return nil, err
	}
	var out []GameSuggestion
	if err := g.c.Get(ctx, "/game/"+url.PathEscape(baseID)+"/expansion-suggestions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ImportResult is the outcome for one BGG id of a batch import.
type ImportResult = pool.Result[int, *Game]

// ImportMany resolves bggIDs concurrently with SearchOrImportByBggID.
// Results are in input order; onDone, if set, sees each one as it finishes.
func (g *GameService) ImportMany(ctx context.Context, bggIDs []int, workers int, onDone func(ImportResult)) ([]ImportResult, error) {
	if err := validation.ValidateWorkerCount(workers); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	for _, id := range bggIDs {
		if err := checkBggID(id); err != nil {
			return nil, err
		}
	}

	log.Info().Int("games", len(bggIDs)).Int("workers", workers).Msg("Importing games")
	results := pool.Run(ctx, bggIDs, workers, func(ctx context.Context, id int) (*Game, error) {
		game, err := g.SearchOrImportByBggID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("bgg %d: %w", id, err)
		}
		return game, nil
	}, onDone)
	return results, nil
}
