package client

import (
	"context"
)

type MatchService struct {
	c *Client
}

func (c *Client) Matches() *MatchService { return &MatchService{c: c} }

// Register records a match.
func (m *MatchService) Register(ctx context.Context, form MatchForm) (*Match, error) {
	if err := validate(form); err != nil {
		return nil, err
	}
	var out Match
	if err := m.c.Post(ctx, "/Match", form.ToCreateRequest(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Last returns the most recent match, or nil when there is none.
func (m *MatchService) Last(ctx context.Context) (*LastMatch, error) {
	var out LastMatch
	if err := m.c.Get(ctx, "/Match/last", nil, &out); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}
