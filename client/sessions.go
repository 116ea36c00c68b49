package client

import (
	"context"
	"net/url"
)

const sessionsPath = "/session"

type SessionService struct {
	c *Client
}

func (c *Client) Sessions() *SessionService { return &SessionService{c: c} }

func sessionPath(id string, rest ...string) string {
	p := sessionsPath + "/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func (s *SessionService) List(ctx context.Context) ([]Session, error) {
	var out []Session
	if err := s.c.Get(ctx, sessionsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SessionService) Get(ctx context.Context, id string) (*Session, error) {
	if err := validateID("sessionId", id); err != nil {
		return nil, err
	}
	var out Session
	if err := s.c.Get(ctx, sessionPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	var out Session
	if err := s.c.Post(ctx, sessionsPath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Close ends an active session.
func (s *SessionService) Close(ctx context.Context, id string) error {
	if err := validateID("sessionId", id); err != nil {
		return err
	}
	return s.c.Post(ctx, sessionPath(id, "close"), nil, nil)
}

func (s *SessionService) AddPlayer(ctx context.Context, sessionID, userID string, isOrganizer bool) error {
	if err := validateID("sessionId", sessionID); err != nil {
		return err
	}
	if err := validateID("userId", userID); err != nil {
		return err
	}
	body := struct {
		UserID      string `json:"userId"`
		IsOrganizer bool   `json:"isOrganizer"`
	}{userID, isOrganizer}
	return s.c.Post(ctx, sessionPath(sessionID, "players"), body, nil)
}

func (s *SessionService) RemovePlayer(ctx context.Context, sessionID, userID string) error {
	if err := validateID("sessionId", sessionID); err != nil {
		return err
	}
	if err := validateID("userId", userID); err != nil {
		return err
	}
	return s.c.Delete(ctx, sessionPath(sessionID, "players", url.PathEscape(userID)), nil)
}

// AddMatch records a match played during the session.
func (s *SessionService) AddMatch(ctx context.Context, sessionID string, form MatchForm) error {
	if err := validateID("sessionId", sessionID); err != nil {
		return err
	}
	form.SessionID = sessionID
	if err := validate(form); err != nil {
		return err
	}
	return s.c.Post(ctx, sessionPath(sessionID, "matches"), form, nil)
}
