package client

import (
	"context"
	"math"
	"net/url"
)

type LibraryService struct {
	c *Client
}

func (c *Client) Library() *LibraryService { return &LibraryService{c: c} }

func libraryPath(userID string, gameID ...string) string {
	p := "/users/" + url.PathEscape(userID) + "/games"
	if len(gameID) > 0 {
		p += "/" + url.PathEscape(gameID[0])
	}
	return p
}

// List returns the user's library.
func (l *LibraryService) List(ctx context.Context, userID string) ([]LibraryEntry, error) {
	if err := validateID("userId", userID); err != nil {
		return nil, err
	}
	var out []LibraryEntry
	if err := l.c.Get(ctx, libraryPath(userID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Add puts a game in the user's library. A NaN or infinite price is sent as 0.
func (l *LibraryService) Add(ctx context.Context, userID string, entry AddLibraryEntry) error {
	if err := validateID("userId", userID); err != nil {
		return err
	}
	if math.IsNaN(entry.PricePaid) || math.IsInf(entry.PricePaid, 0) {
		entry.PricePaid = 0
	}
	if err := validate(entry); err != nil {
		return err
	}
	return l.c.Post(ctx, libraryPath(userID), entry, nil)
}

// Update changes the status and, when set, the price of a library entry.
func (l *LibraryService) Update(ctx context.Context, userID, gameID string, upd UpdateLibraryEntry) error {
	if err := validateID("userId", userID); err != nil {
		return err
	}
	if err := validateID("gameId", gameID); err != nil {
		return err
	}
	if upd.PricePaid != nil && (math.IsNaN(*upd.PricePaid) || math.IsInf(*upd.PricePaid, 0)) {
		upd.PricePaid = nil
	}
	if err := validate(upd); err != nil {
		return err
	}
	return l.c.Patch(ctx, libraryPath(userID, gameID), upd, nil)
}

func (l *LibraryService) Remove(ctx context.Context, userID, gameID string) error {
	if err := validateID("userId", userID); err != nil {
		return err
	}
	if err := validateID("gameId", gameID); err != nil {
		return err
	}
	return l.c.Delete(ctx, libraryPath(userID, gameID), nil)
}
