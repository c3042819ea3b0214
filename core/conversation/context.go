package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"golang.org/x/sync/errgroup"
)

const (
	SectionSession       = "CURRENT SESSION"
	SectionSemantic      = "SEMANTICALLY RELEVANT PAST CONVERSATION"
	SectionChronological = "CHRONOLOGICAL HISTORY"
)

// History is the conversation context an agent sees, split by origin.
type History struct {
	Session       []domain.ConversationTurn
	Semantic      []domain.ConversationTurn
	Chronological []domain.ConversationTurn
}

// LoadRequest describes which slices of history to fetch.
type LoadRequest struct {
	UserID    string
	SessionID string
	Query     string
	Domain    string
	Limit     int
}

// Load fetches the session, semantic and chronological slices concurrently.
// A failing fetch leaves its slice empty; history is never worth failing a
// request for.
func Load(ctx context.Context, store Store, req LoadRequest, logger *slog.Logger) History {
	var h History
	if store == nil || req.UserID == "" {
		return h
	}
	if logger == nil {
		logger = slog.Default()
	}

	g, gctx := errgroup.WithContext(ctx)

	if req.SessionID != "" {
		g.Go(func() error {
			turns, err := store.FetchRecent(gctx, req.UserID, Filter{Limit: req.Limit, SessionID: req.SessionID})
			if err != nil {
				logger.Warn("session history unavailable", "user_id", req.UserID, "error", err)
				return nil
			}
			h.Session = turns
			return nil
		})
	}

	g.Go(func() error {
		turns, err := store.FetchSemantic(gctx, req.UserID, req.Query, Filter{Limit: req.Limit, Domain: req.Domain})
		if err != nil {
			logger.Warn("semantic history unavailable", "user_id", req.UserID, "error", err)
			return nil
		}
		h.Semantic = turns
		return nil
	})

	g.Go(func() error {
		turns, err := store.FetchRecent(gctx, req.UserID, Filter{Limit: req.Limit})
		if err != nil {
			logger.Warn("recent history unavailable", "user_id", req.UserID, "error", err)
			return nil
		}
		h.Chronological = turns
		return nil
	})

	_ = g.Wait()
	return h
}

// IsEmpty reports whether no section has turns.
func (h History) IsEmpty() bool {
	return len(h.Session) == 0 && len(h.Semantic) == 0 && len(h.Chronological) == 0
}

// Render formats the sections in fixed order: current session, semantic
// matches, chronological history. A turn already shown in an earlier
// section is not repeated. Empty sections are omitted.
func (h History) Render() string {
	seen := make(map[string]struct{})
	var b strings.Builder

	write := func(title string, turns []domain.ConversationTurn) {
		var lines []string
		for _, t := range turns {
			key := turnKey(t)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			lines = append(lines, formatTurn(t))
		}
		if len(lines) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "=== %s ===\n", title)
		for _, line := range lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	write(SectionSession, h.Session)
	write(SectionSemantic, h.Semantic)
	write(SectionChronological, h.Chronological)

	return b.String()
}

func turnKey(t domain.ConversationTurn) string {
	return string(t.Role) + "\x00" + strings.TrimSpace(t.Content)
}

func formatTurn(t domain.ConversationTurn) string {
	speaker := "User"
	if t.Role == domain.RoleAssistant {
		speaker = "Navia"
	}
	content := strings.TrimSpace(t.Content)
	if t.Domain != "" {
		return fmt.Sprintf("%s [%s]: %s", speaker, t.Domain, content)
	}
	return fmt.Sprintf("%s: %s", speaker, content)
}
