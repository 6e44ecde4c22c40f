package simfeed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const defaultPageSize = 25

// Published is a post the bot sent to the simulated platform.
type Published struct {
	Hash   string `json:"hash"`
	Text   string `json:"text"`
	Parent string `json:"parent,omitempty"`
}

// Server answers the feed adapter's calls from a Dataset and records
// everything the bot publishes.
type Server struct {
	ds *Dataset

	mu        sync.Mutex
	published []Published
}

// NewServer serves ds.
func NewServer(ds *Dataset) *Server {
	return &Server{ds: ds}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/v2/farcaster/cast/search", s.handleSearch)
	r.Get("/v2/farcaster/notifications", s.handleNotifications)
	r.Get("/v2/farcaster/cast", s.handleLookup)
	r.Get("/v2/farcaster/user/bulk", s.handleUsers)
	r.Post("/v2/farcaster/cast", s.handlePublish)
	return r
}

// Published returns a copy of what the bot has published so far.
func (s *Server) Published() []Published {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Published(nil), s.published...)
}

type wireUser struct {
	FID      int64  `json:"fid"`
	Username string `json:"username"`
}

type wireReactions struct {
	LikesCount int64 `json:"likes_count"`
}

type wireCast struct {
	Hash       string        `json:"hash"`
	Text       string        `json:"text"`
	Timestamp  time.Time     `json:"timestamp"`
	Author     wireUser      `json:"author"`
	Reactions  wireReactions `json:"reactions"`
	ParentHash *string       `json:"parent_hash"`
}

type wireNotification struct {
	Type string    `json:"type"`
	Cast *wireCast `json:"cast"`
}

type wireNext struct {
	Cursor string `json:"cursor"`
}

func toWire(c Cast) wireCast {
	w := wireCast{
		Hash:      c.Hash,
		Text:      c.Text,
		Timestamp: c.Timestamp,
		Author:    wireUser{FID: c.Author.FID, Username: c.Author.Username},
		Reactions: wireReactions{LikesCount: c.Likes},
	}
	if c.Parent != "" {
		parent := c.Parent
		w.ParentHash = &parent
	}
	return w
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(strings.TrimRight(r.URL.Query().Get("q"), ".…")))
	limit := pageSize(r)
	casts := make([]wireCast, 0, limit)
	for _, p := range s.ds.Posts {
		if len(casts) == limit {
			break
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Text), q) {
			continue
		}
		casts = append(casts, toWire(p))
	}
	var resp struct {
		Result struct {
			Casts []wireCast `json:"casts"`
			Next  wireNext   `json:"next"`
		} `json:"result"`
	}
	resp.Result.Casts = casts
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	fid, _ := strconv.ParseInt(r.URL.Query().Get("fid"), 10, 64)
	limit := pageSize(r)
	notes := make([]wireNotification, 0, limit)
	if fid == s.ds.Config.BotFID {
		for _, m := range s.ds.Mentions {
			if len(notes) == limit {
				break
			}
			c := toWire(m)
			notes = append(notes, wireNotification{Type: "mention", Cast: &c})
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Notifications []wireNotification `json:"notifications"`
		Next          wireNext           `json:"next"`
	}{Notifications: notes})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	c, ok := s.ds.Cast(r.URL.Query().Get("identifier"))
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "cast not found")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Cast wireCast `json:"cast"`
	}{Cast: toWire(c)})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	users := []wireUser{}
	for _, raw := range strings.Split(r.URL.Query().Get("fids"), ",") {
		fid, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			continue
		}
		if u, ok := s.ds.User(fid); ok {
			users = append(users, wireUser{FID: u.FID, Username: u.Username})
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Users []wireUser `json:"users"`
	}{Users: users})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SignerUUID string `json:"signer_uuid"`
		Text       string `json:"text"`
		Parent     string `json:"parent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "InvalidBody", "text is required")
		return
	}
	if req.SignerUUID == "" {
		writeError(w, http.StatusUnauthorized, "InvalidSigner", "signer_uuid is required")
		return
	}

	s.mu.Lock()
	p := Published{Hash: fmt.Sprintf("0xsim%04d", len(s.published)+1), Text: req.Text, Parent: req.Parent}
	s.published = append(s.published, p)
	s.mu.Unlock()

	var resp struct {
		Success bool `json:"success"`
		Cast    struct {
			Hash string `json:"hash"`
		} `json:"cast"`
	}
	resp.Success = true
	resp.Cast.Hash = p.Hash
	writeJSON(w, http.StatusOK, resp)
}

func pageSize(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 1 {
		return defaultPageSize
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{Code: code, Message: msg})
}
