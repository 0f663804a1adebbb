package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// DefaultSearchLimit is the number of memories returned by Search.
const DefaultSearchLimit = 5

const maxMemoryRunes = 500

// candidateWindow bounds how many recent memories are scored per search.
const candidateWindow = 500

// LearningStore remembers past exchanges and recalls the ones that share
// vocabulary with a new query.
type LearningStore struct {
	db *sql.DB
}

// Memory is one remembered exchange.
type Memory struct {
	ID        string
	UserID    string
	Content   string
	CreatedAt time.Time
}

// NewLearningStore opens (or creates) the store at dbPath.
func NewLearningStore(dbPath string) (*LearningStore, error) {
	db, err := openDB(dbPath, `
	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_memories_user_created ON memories(user_id, created_at);
	`)
	if err != nil {
		return nil, err
	}
	return &LearningStore{db: db}, nil
}

// Add stores an exchange for the default user.
func (s *LearningStore) Add(ctx context.Context, userMsg, assistantMsg string) error {
	return s.AddFor(ctx, DefaultUserID, userMsg, assistantMsg)
}

// AddFor stores an exchange for userID.
func (s *LearningStore) AddFor(ctx context.Context, userID, userMsg, assistantMsg string) error {
	content := summarize(userMsg, assistantMsg)
	if content == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, user_id, content, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), userID, content, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store memory: %w", err)
	}
	return nil
}

// Search returns up to limit memories for the default user, best keyword
// overlap first. Memories sharing no keyword with query are not returned.
func (s *LearningStore) Search(ctx context.Context, query string, limit int) ([]string, error) {
	return s.SearchFor(ctx, DefaultUserID, query, limit)
}

// SearchFor is Search scoped to userID.
func (s *LearningStore) SearchFor(ctx context.Context, userID, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	terms := keywords(query)
	if len(terms) == 0 {
		return nil, nil
	}

	mems, err := s.recent(ctx, userID, candidateWindow)
	if err != nil {
		return nil, err
	}

	type scored struct {
		content string
		score   int
		created time.Time
	}
	var hits []scored
	for _, m := range mems {
		score := 0
		for term := range keywords(m.Content) {
			if _, ok := terms[term]; ok {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{m.Content, score, m.CreatedAt})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].created.After(hits[j].created)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.content
	}
	return out, nil
}

// All returns every memory for the default user, newest first.
func (s *LearningStore) All(ctx context.Context) ([]string, error) {
	mems, err := s.recent(ctx, DefaultUserID, -1)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(mems))
	for i, m := range mems {
		out[i] = m.Content
	}
	return out, nil
}

// Close closes the database.
func (s *LearningStore) Close() error {
	return s.db.Close()
}

func (s *LearningStore) recent(ctx context.Context, userID string, limit int) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, content, created_at FROM memories
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var mems []Memory
	for rows.Next() {
		var (
			m    Memory
			nano int64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &nano); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		m.CreatedAt = time.Unix(0, nano)
		mems = append(mems, m)
	}
	return mems, rows.Err()
}

func summarize(userMsg, assistantMsg string) string {
	userMsg = strings.TrimSpace(userMsg)
	assistantMsg = strings.TrimSpace(assistantMsg)
	if userMsg == "" && assistantMsg == "" {
		return ""
	}
	s := fmt.Sprintf("User said: %s | Assistant replied: %s", userMsg, assistantMsg)
	if r := []rune(s); len(r) > maxMemoryRunes {
		s = string(r[:maxMemoryRunes]) + "..."
	}
	return s
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {},
	"all": {}, "can": {}, "was": {}, "what": {}, "this": {}, "that": {}, "with": {},
	"have": {}, "from": {}, "they": {}, "will": {}, "would": {}, "there": {},
	"their": {}, "about": {}, "which": {}, "when": {}, "your": {}, "said": {},
	"user": {}, "assistant": {}, "replied": {}, "how": {}, "please": {},
}

// keywords lower-cases s and returns its distinct words of three or more
// letters, minus stop words.
func keywords(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) < 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}
