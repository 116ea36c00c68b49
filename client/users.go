package client

import (
	"context"

	"github.com/meepleboard/meeple/auth"
)

// Friends returns the signed-in user's friends.
func (c *Client) Friends(ctx context.Context) ([]Friend, error) {
	var out []Friend
	if err := c.Get(ctx, "/friendships", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Users(ctx context.Context) ([]auth.User, error) {
	var out []auth.User
	if err := c.Get(ctx, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Me returns the profile of the signed-in user.
func (c *Client) Me(ctx context.Context) (*auth.User, error) {
	var out auth.User
	if err := c.Get(ctx, "/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
