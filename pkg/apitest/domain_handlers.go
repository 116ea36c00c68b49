package apitest

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// AddBggGame adds an entry to the simulated BoardGameGeek catalogue.
func (b *Backend) AddBggGame(g BggGame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalog[g.BggID] = g
}

// AddGame imports a catalogue entry right away and returns its local id.
func (b *Backend) AddGame(g BggGame) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalog[g.BggID] = g
	return b.importLocked(g).ID
}

func (b *Backend) importLocked(c BggGame) *Game {
	for _, g := range b.games {
		if g.BggID == c.BggID {
			return g
		}
	}
	g := &Game{ID: "game-" + strconv.Itoa(c.BggID), Name: c.Name, BggID: c.BggID, YearPublished: c.YearPublished, IsExpansion: c.IsExpansion}
	if c.IsExpansion {
		base := c.BaseBggID
		g.BaseGameBggID = &base
	}
	b.games[g.ID] = g
	return g
}

type suggestionDTO struct {
	BggID         int    `json:"bggId"`
	Name          string `json:"name"`
	YearPublished int    `json:"yearPublished,omitempty"`
}

func (b *Backend) gameRoutes(r *mux.Router) {
	r.HandleFunc("/game/search", b.handleGameSearch).Methods(http.MethodGet)
	r.HandleFunc("/game/suggestions", b.suggest(func(BggGame) bool { return true })).Methods(http.MethodGet)
	r.HandleFunc("/game/base-search", b.suggest(func(g BggGame) bool { return !g.IsExpansion })).Methods(http.MethodGet)
	r.HandleFunc("/game/expansion-suggestions", b.suggest(func(g BggGame) bool { return g.IsExpansion })).Methods(http.MethodGet)
	r.HandleFunc("/game/by-bgg/{bggId:[0-9]+}", b.handleGameByBgg).Methods(http.MethodGet)
	r.HandleFunc("/game/import/{bggId:[0-9]+}", b.handleGameImport).Methods(http.MethodPost)
	r.HandleFunc("/game/{id}/expansion-suggestions", b.handleExpansionsOfBase).Methods(http.MethodGet)
	r.HandleFunc("/game/{id}", b.handleGameByID).Methods(http.MethodGet)
}

func (b *Backend) handleGameByID(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.games[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Game not found.")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (b *Backend) handleGameByBgg(w http.ResponseWriter, r *http.Request) {
	bggID, _ := strconv.Atoi(mux.Vars(r)["bggId"])
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, g := range b.games {
		if g.BggID == bggID {
			writeJSON(w, http.StatusOK, g)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Game not found.")
}

func (b *Backend) handleGameImport(w http.ResponseWriter, r *http.Request) {
	bggID, _ := strconv.Atoi(mux.Vars(r)["bggId"])
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.catalog[bggID]
	if !ok {
		writeError(w, http.StatusNotFound, "Game not found on BoardGameGeek.")
		return
	}
	writeJSON(w, http.StatusOK, b.importLocked(c))
}

func (b *Backend) handleGameSearch(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("name")))
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, g := range b.games {
		if strings.ToLower(g.Name) == name {
			writeJSON(w, http.StatusOK, g)
			return
		}
	}
	for _, c := range b.catalog {
		if strings.ToLower(c.Name) == name {
			writeJSON(w, http.StatusOK, b.importLocked(c))
			return
		}
	}
	writeError(w, http.StatusNotFound, "Game not found.")
}

func (b *Backend) suggest(keep func(BggGame) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.ToLower(r.URL.Query().Get("query"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			limit = 10
		}

		b.mu.Lock()
		var hits []BggGame
		for _, c := range b.catalog {
			if keep(c) && strings.Contains(strings.ToLower(c.Name), q) {
				hits = append(hits, c)
			}
		}
		b.mu.Unlock()

		sort.Slice(hits, func(i, j int) bool { return hits[i].BggID < hits[j].BggID })
		out := []suggestionDTO{}
		for i := offset; i < len(hits) && i < offset+limit; i++ {
			out = append(out, suggestionDTO{BggID: hits[i].BggID, Name: hits[i].Name, YearPublished: hits[i].YearPublished})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (b *Backend) handleExpansionsOfBase(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	base, ok := b.games[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Game not found.")
		return
	}
	out := []suggestionDTO{}
	for _, c := range b.catalog {
		if c.IsExpansion && c.BaseBggID == base.BggID {
			out = append(out, suggestionDTO{BggID: c.BggID, Name: c.Name, YearPublished: c.YearPublished})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BggID < out[j].BggID })
	writeJSON(w, http.StatusOK, out)
}

type matchPlayer struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
	IsWinner bool   `json:"isWinner"`
}

type match struct {
	ID            string        `json:"id"`
	GameID        string        `json:"gameId"`
	GameName      string        `json:"gameName"`
	GameSessionID string        `json:"sessionId,omitempty"`
	MatchDate     string        `json:"matchDate"`
	WinnerID      string        `json:"winnerId,omitempty"`
	WinnerName    string        `json:"winnerName,omitempty"`
	IsSoloGame    bool          `json:"isSoloGame"`
	Players       []matchPlayer `json:"players"`
}

// Matches returns a copy of every recorded match.
func (b *Backend) Matches() []match {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]match(nil), b.matches...)
}

func (b *Backend) matchRoutes(r *mux.Router) {
	r.HandleFunc("/Match", b.handleCreateMatch).Methods(http.MethodPost)
	r.HandleFunc("/Match/last", b.handleLastMatch).Methods(http.MethodGet)
}

func (b *Backend) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GameID        string   `json:"gameId"`
		GameName      string   `json:"gameName"`
		GameSessionID string   `json:"gameSessionId"`
		MatchDate     string   `json:"matchDate"`
		WinnerID      string   `json:"winnerId"`
		IsSoloGame    bool     `json:"isSoloGame"`
		PlayerIDs     []string `json:"playerIds"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.GameID == "" || len(req.PlayerIDs) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid match.", "A match needs a game and at least one player.")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.recordMatchLocked(req.GameID, req.GameName, req.GameSessionID, req.MatchDate, req.WinnerID, req.IsSoloGame, req.PlayerIDs))
}

func (b *Backend) recordMatchLocked(gameID, gameName, sessionID, date, winnerID string, solo bool, playerIDs []string) match {
	m := match{ID: uuid.NewString(), GameID: gameID, GameName: gameName, GameSessionID: sessionID, MatchDate: date, WinnerID: winnerID, IsSoloGame: solo}
	for _, id := range playerIDs {
		p := matchPlayer{UserID: id, IsWinner: id == winnerID}
		if u, ok := b.users[id]; ok {
			p.UserName = u.UserName
		}
		m.Players = append(m.Players, p)
	}
	if u, ok := b.users[winnerID]; ok {
		m.WinnerName = u.UserName
	}
	b.matches = append(b.matches, m)
	return m
}

func (b *Backend) handleLastMatch(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.matches) == 0 {
		writeError(w, http.StatusNotFound, "No matches yet.")
		return
	}
	m := b.matches[len(b.matches)-1]
	writeJSON(w, http.StatusOK, map[string]string{"name": m.GameName, "date": m.MatchDate, "winner": m.WinnerName})
}

type sessionPlayer struct {
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	IsOrganizer bool   `json:"isOrganizer"`
	JoinedAt    string `json:"joinedAt"`
}

type session struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Organizer string          `json:"organizer"`
	Location  *string         `json:"location,omitempty"`
	StartDate string          `json:"startDate"`
	EndDate   *string         `json:"endDate,omitempty"`
	Players   []sessionPlayer `json:"players"`
	IsActive  bool            `json:"isActive"`
	Matches   []match         `json:"matches"`
}

func (b *Backend) sessionRoutes(r *mux.Router) {
	r.HandleFunc("/session", b.handleListSessions).Methods(http.MethodGet)
	r.HandleFunc("/session", b.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/session/{id}", b.withSession(b.handleGetSession)).Methods(http.MethodGet)
	r.HandleFunc("/session/{id}/close", b.withSession(b.handleCloseSession)).Methods(http.MethodPost)
	r.HandleFunc("/session/{id}/players", b.withSession(b.handleAddPlayer)).Methods(http.MethodPost)
	r.HandleFunc("/session/{id}/players/{userId}", b.withSession(b.handleRemovePlayer)).Methods(http.MethodDelete)
	r.HandleFunc("/session/{id}/matches", b.withSession(b.handleSessionMatch)).Methods(http.MethodPost)
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func (b *Backend) handleListSessions(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*session, 0, len(b.sessions))
	for _, s := range b.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string  `json:"name"`
		OrganizerID string  `json:"organizerId"`
		Location    *string `json:"location"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	org, ok := b.users[req.OrganizerID]
	if !ok || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Invalid session.", "Unknown organizer or missing name.")
		return
	}
	s := &session{
		ID: uuid.NewString(), Name: req.Name, Organizer: org.UserName, Location: req.Location,
		StartDate: now(), IsActive: true, Matches: []match{},
		Players: []sessionPlayer{{UserID: org.ID, UserName: org.UserName, IsOrganizer: true, JoinedAt: now()}},
	}
	b.sessions[s.ID] = s
	writeJSON(w, http.StatusOK, s)
}

// withSession resolves {id} and holds the lock for h.
func (b *Backend) withSession(h func(http.ResponseWriter, *http.Request, *session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		s, ok := b.sessions[mux.Vars(r)["id"]]
		if !ok {
			writeError(w, http.StatusNotFound, "Session not found.")
			return
		}
		h(w, r, s)
	}
}

func (b *Backend) handleGetSession(w http.ResponseWriter, _ *http.Request, s *session) {
	writeJSON(w, http.StatusOK, s)
}

func (b *Backend) handleCloseSession(w http.ResponseWriter, _ *http.Request, s *session) {
	if !s.IsActive {
		writeError(w, http.StatusBadRequest, "Session already closed.")
		return
	}
	end := now()
	s.IsActive = false
	s.EndDate = &end
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleAddPlayer(w http.ResponseWriter, r *http.Request, s *session) {
	var req struct {
		UserID      string `json:"userId"`
		IsOrganizer bool   `json:"isOrganizer"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	u, ok := b.users[req.UserID]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found.")
		return
	}
	for _, p := range s.Players {
		if p.UserID == u.ID {
			writeError(w, http.StatusConflict, "Player already in session.")
			return
		}
	}
	s.Players = append(s.Players, sessionPlayer{UserID: u.ID, UserName: u.UserName, IsOrganizer: req.IsOrganizer, JoinedAt: now()})
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleRemovePlayer(w http.ResponseWriter, r *http.Request, s *session) {
	userID := mux.Vars(r)["userId"]
	for i, p := range s.Players {
		if p.UserID == userID {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Player not in session.")
}

func (b *Backend) handleSessionMatch(w http.ResponseWriter, r *http.Request, s *session) {
	var req struct {
		GameID     string        `json:"gameId"`
		GameName   string        `json:"gameName"`
		MatchDate  string        `json:"matchDate"`
		WinnerID   string        `json:"winnerId"`
		IsSoloGame bool          `json:"isSoloGame"`
		Players    []matchPlayer `json:"players"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	ids := make([]string, 0, len(req.Players))
	winner := req.WinnerID
	for _, p := range req.Players {
		ids = append(ids, p.UserID)
		if winner == "" && p.IsWinner {
			winner = p.UserID
		}
	}
	m := b.recordMatchLocked(req.GameID, req.GameName, s.ID, req.MatchDate, winner, req.IsSoloGame, ids)
	s.Matches = append(s.Matches, m)
	w.WriteHeader(http.StatusNoContent)
}

type libraryEntry struct {
	ID        string   `json:"id"`
	GameID    string   `json:"gameId"`
	BggID     int      `json:"bggId"`
	GameName  string   `json:"gameName"`
	Status    int      `json:"status"`
	AddedAt   string   `json:"addedAt"`
	PricePaid *float64 `json:"pricePaid,omitempty"`
}

func (b *Backend) libraryRoutes(r *mux.Router) {
	r.HandleFunc("/users/{userId}/games", b.ownLibrary(b.handleListLibrary)).Methods(http.MethodGet)
	r.HandleFunc("/users/{userId}/games", b.ownLibrary(b.handleAddLibrary)).Methods(http.MethodPost)
	r.HandleFunc("/users/{userId}/games/{gameId}", b.ownLibrary(b.handleUpdateLibrary)).Methods(http.MethodPatch)
	r.HandleFunc("/users/{userId}/games/{gameId}", b.ownLibrary(b.handleRemoveLibrary)).Methods(http.MethodDelete)
}

// ownLibrary only lets users touch their own library, and holds the lock for h.
func (b *Backend) ownLibrary(h func(http.ResponseWriter, *http.Request, map[string]*libraryEntry)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userId"]
		if userID != userFrom(r) {
			writeError(w, http.StatusForbidden, "Not your library.")
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		lib, ok := b.library[userID]
		if !ok {
			lib = map[string]*libraryEntry{}
			b.library[userID] = lib
		}
		h(w, r, lib)
	}
}

func (b *Backend) handleListLibrary(w http.ResponseWriter, _ *http.Request, lib map[string]*libraryEntry) {
	out := make([]*libraryEntry, 0, len(lib))
	for _, e := range lib {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameName < out[j].GameName })
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleAddLibrary(w http.ResponseWriter, r *http.Request, lib map[string]*libraryEntry) {
	var req struct {
		GameID    string  `json:"gameId"`
		GameName  string  `json:"gameName"`
		Status    int     `json:"status"`
		PricePaid float64 `json:"pricePaid"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if _, dup := lib[req.GameID]; dup {
		writeError(w, http.StatusConflict, "Game already in library.")
		return
	}
	if req.Status < 1 || req.Status > 3 {
		writeError(w, http.StatusBadRequest, "Invalid status.")
		return
	}
	e := &libraryEntry{ID: uuid.NewString(), GameID: req.GameID, GameName: req.GameName, Status: req.Status, AddedAt: now()}
	if g, ok := b.games[req.GameID]; ok {
		e.BggID = g.BggID
	}
	price := req.PricePaid
	e.PricePaid = &price
	lib[req.GameID] = e
	writeJSON(w, http.StatusCreated, e)
}

func (b *Backend) handleUpdateLibrary(w http.ResponseWriter, r *http.Request, lib map[string]*libraryEntry) {
	e, ok := lib[mux.Vars(r)["gameId"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Game not in library.")
		return
	}
	var req struct {
		Status    int      `json:"status"`
		PricePaid *float64 `json:"pricePaid"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	e.Status = req.Status
	if req.PricePaid != nil {
		e.PricePaid = req.PricePaid
	}
	writeJSON(w, http.StatusOK, e)
}

func (b *Backend) handleRemoveLibrary(w http.ResponseWriter, r *http.Request, lib map[string]*libraryEntry) {
	gameID := mux.Vars(r)["gameId"]
	if _, ok := lib[gameID]; !ok {
		writeError(w, http.StatusNotFound, "Game not in library.")
		return
	}
	delete(lib, gameID)
	w.WriteHeader(http.StatusNoContent)
}
