package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"agentrelay/model"

	"github.com/sahilm/fuzzy"
)

const (
	titleLength   = 30
	previewLength = 100
)

// Match is one search hit. MessageID is empty when the title matched.
type Match struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	MessageID string `json:"message_id,omitempty"`
	Role      string `json:"role,omitempty"`
	Preview   string `json:"preview"`
	Score     int    `json:"score"`
}

// candidate is one searchable text.
type candidate struct {
	session Session
	message *model.Message
	text    string
}

type candidates []candidate

func (c candidates) String(i int) string { return c[i].text }
func (c candidates) Len() int            { return len(c) }

// Search finds sessions whose title or messages fuzzily match query. Hits
// containing query as a plain substring rank first. System messages are
// not searched. limit <= 0 means no limit.
func (s *SessionStore) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Match{}, nil
	}

	sessions, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var pool candidates
	for _, sess := range sessions {
		if sess.Title != "" {
			pool = append(pool, candidate{session: sess, text: sess.Title})
		}
		messages, err := s.Get(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to search session %s: %w", sess.ID, err)
		}
		for i := range messages {
			if messages[i].Role == model.RoleSystem || messages[i].Content == "" {
				continue
			}
			pool = append(pool, candidate{session: sess, message: &messages[i], text: messages[i].Content})
		}
	}

	found := fuzzy.FindFrom(query, pool)
	lower := strings.ToLower(query)
	sort.SliceStable(found, func(i, j int) bool {
		ei := strings.Contains(strings.ToLower(found[i].Str), lower)
		ej := strings.Contains(strings.ToLower(found[j].Str), lower)
		if ei != ej {
			return ei
		}
		return found[i].Score > found[j].Score
	})

	matches := []Match{}
	for _, f := range found {
		c := pool[f.Index]
		m := Match{
			SessionID: c.session.ID,
			Title:     c.session.Title,
			Preview:   preview(c.text),
			Score:     f.Score,
		}
		if c.message != nil {
			m.MessageID = c.message.ID
			m.Role = c.message.Role
		}
		matches = append(matches, m)
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}

// GenerateTitle derives a session title from its first user message.
func GenerateTitle(firstMessage string) string {
	name := strings.Join(strings.Fields(firstMessage), " ")
	if name == "" {
		return fmt.Sprintf("Session %s", time.Now().Format("Jan 2, 3:04 PM"))
	}
	if utf8.RuneCountInString(name) > titleLength {
		name = string([]rune(name)[:titleLength]) + "..."
	}
	return name
}

// TitleFor picks the first user message of messages as title source.
func TitleFor(messages []model.Message) string {
	for _, m := range messages {
		if m.Role == model.RoleUser {
			return GenerateTitle(m.Content)
		}
	}
	return GenerateTitle("")
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > previewLength {
		return string([]rune(text)[:previewLength]) + "..."
	}
	return text
}
