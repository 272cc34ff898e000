package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/frejasky/coda/internal/llm"
	"github.com/google/uuid"
)

// ErrUnknownSession indicates a session id that was never created.
// Callers are expected to create sessions before appending to them;
// this is a contract violation, not a runtime condition.
var ErrUnknownSession = errors.New("memory: unknown session")

// Defaults for manager configuration.
const (
	defaultContextWindow        = 50
	defaultCompressionThreshold = 100
	defaultMaxSessionAge        = 24 * time.Hour

	// compressionKeepRatio is the fraction of recent turns kept
	// verbatim when a session compresses.
	compressionKeepRatio = 0.7

	// summaryPrefixLen is how many characters of each compressed turn
	// survive into the summary.
	summaryPrefixLen = 20
)

// Importance scoring. Base plus bonuses, capped at the maximum.
const (
	importanceBase     = 5
	importanceQuestion = 2
	importanceUrgency  = 3
	importanceAction   = 1
	importanceMax      = 10
)

var (
	urgencyPattern = regexp.MustCompile(`(?i)\b(urgent|asap|immediately|right now|critical|emergency)\b`)
	actionPattern  = regexp.MustCompile(`(?i)\b(please|can you|could you|fix|create|make|add|help)\b`)
)

// scoreImportance computes a turn's importance from its content.
func scoreImportance(content string) int {
	score := importanceBase
	if strings.Contains(content, "?") {
		score += importanceQuestion
	}
	if urgencyPattern.MatchString(content) {
		score += importanceUrgency
	}
	if actionPattern.MatchString(content) {
		score += importanceAction
	}
	return min(score, importanceMax)
}

// estimateTokens approximates the token count of a text as one token
// per four characters, rounded up.
func estimateTokens(content string) int {
	return (len(content) + 3) / 4
}

// nopHandler is a slog.Handler that discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// ManagerConfig controls memory behavior.
type ManagerConfig struct {
	// ContextWindow is the default number of recent turns returned by
	// GetContextWindow. Default: 50.
	ContextWindow int

	// CompressionThreshold is the turn count at which a session
	// compresses its oldest turns into a summary. Default: 100.
	CompressionThreshold int

	// MaxSessionAge is the inactivity age beyond which ClearOldSessions
	// deletes a session. Default: 24h.
	MaxSessionAge time.Duration
}

// defaults fills zero-value fields with sensible defaults.
func (c *ManagerConfig) defaults() {
	if c.ContextWindow <= 0 {
		c.ContextWindow = defaultContextWindow
	}
	if c.CompressionThreshold <= 0 {
		c.CompressionThreshold = defaultCompressionThreshold
	}
	if c.MaxSessionAge <= 0 {
		c.MaxSessionAge = defaultMaxSessionAge
	}
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithVectorizer enables semantic indexing with the given vectorizer.
// Without one, indexing and similarity retrieval are disabled.
func WithVectorizer(v Vectorizer) ManagerOption {
	return func(m *Manager) { m.vectorizer = v }
}

// Manager owns all sessions and their turns. Safe for concurrent use;
// turn order within a session follows AddMessage call order under the
// manager's lock.
type Manager struct {
	cfg        ManagerConfig
	logger     *slog.Logger
	vectorizer Vectorizer

	mu       sync.RWMutex
	sessions map[string]*Session

	// vectors maps session id to turn id to embedding. Entries are
	// added and removed in lockstep with their turns.
	vectors map[string]map[string][]float64

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewManager creates an empty memory manager.
func NewManager(cfg ManagerConfig, opts ...ManagerOption) *Manager {
	cfg.defaults()
	m := &Manager{
		cfg:      cfg,
		logger:   slog.New(nopHandler{}),
		sessions: make(map[string]*Session),
		vectors:  make(map[string]map[string][]float64),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreateSession returns the session with the given id, creating
// it if absent. An empty sessionID synthesizes one from the user id
// and current time. The returned session is a copy.
func (m *Manager) GetOrCreateSession(userID, sessionID string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID == "" {
		sessionID = fmt.Sprintf("%s-%d", userID, m.now().UnixNano())
	}
	s, ok := m.sessions[sessionID]
	if !ok {
		now := m.now()
		s = &Session{
			ID:         sessionID,
			UserID:     userID,
			Started:    now,
			LastUpdate: now,
			Context:    SessionContext{Urgency: UrgencyNormal},
		}
		m.sessions[sessionID] = s
		m.logger.Debug("session created", "session", sessionID, "user", userID)
	}
	return s.clone()
}

// AddMessage appends a turn to the session. Token count and importance
// are computed from the content unless meta overrides them. Reaching
// the compression threshold triggers compression before returning.
func (m *Manager) AddMessage(sessionID string, role llm.Role, content string, meta *TurnMeta) (ChatTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return ChatTurn{}, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	turn := ChatTurn{
		ID:         uuid.NewString(),
		Time:       m.now(),
		Role:       role,
		Content:    content,
		Tokens:     estimateTokens(content),
		Importance: scoreImportance(content),
	}
	if meta != nil {
		if meta.Importance != nil {
			turn.Importance = *meta.Importance
		}
		turn.Tags = meta.Tags
		turn.Related = meta.Related
	}

	s.Turns = append(s.Turns, turn)
	s.MessageCount++
	s.LastUpdate = turn.Time

	m.indexTurn(sessionID, turn)

	if len(s.Turns) >= m.cfg.CompressionThreshold {
		m.compress(s)
	}
	return turn, nil
}

// indexTurn stores the turn's embedding. Caller must hold m.mu.
func (m *Manager) indexTurn(sessionID string, turn ChatTurn) {
	if m.vectorizer == nil {
		return
	}
	byTurn, ok := m.vectors[sessionID]
	if !ok {
		byTurn = make(map[string][]float64)
		m.vectors[sessionID] = byTurn
	}
	byTurn[turn.ID] = m.vectorizer.Vectorize(turn.Content)
}

// compress keeps the most recent turns and replaces everything older
// with one synthetic assistant summary turn. The summary is a lossy
// concatenation of each compressed turn's leading characters, not an
// LLM summarization. Caller must hold m.mu.
func (m *Manager) compress(s *Session) {
	keep := int(float64(m.cfg.CompressionThreshold) * compressionKeepRatio)
	if len(s.Turns) <= keep {
		return
	}

	compressed := s.Turns[:len(s.Turns)-keep]
	kept := s.Turns[len(s.Turns)-keep:]

	var b strings.Builder
	b.WriteString("[compressed history] ")
	for i, t := range compressed {
		if i > 0 {
			b.WriteString(" | ")
		}
		content := t.Content
		if len(content) > summaryPrefixLen {
			content = content[:summaryPrefixLen]
		}
		b.WriteString(content)
	}

	summary := ChatTurn{
		ID:         uuid.NewString(),
		Time:       m.now(),
		Role:       llm.RoleAssistant,
		Content:    b.String(),
		Tokens:     estimateTokens(b.String()),
		Importance: importanceBase,
		Tags:       []string{"summary"},
	}

	if byTurn := m.vectors[s.ID]; byTurn != nil {
		for _, t := range compressed {
			delete(byTurn, t.ID)
		}
	}

	s.Turns = make([]ChatTurn, 0, keep+1)
	s.Turns = append(s.Turns, summary)
	s.Turns = append(s.Turns, kept...)
	m.indexTurn(s.ID, summary)

	m.logger.Info("session compressed",
		"session", s.ID,
		"compressed", len(compressed),
		"kept", keep)
}

// GetContextWindow returns the last windowSize turns mapped to plain
// chat messages for LLM consumption. A non-positive windowSize uses
// the configured default. A compression summary counts as one turn.
func (m *Manager) GetContextWindow(sessionID string, windowSize int) ([]llm.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if windowSize <= 0 {
		windowSize = m.cfg.ContextWindow
	}

	turns := s.Turns
	if len(turns) > windowSize {
		turns = turns[len(turns)-windowSize:]
	}
	out := make([]llm.ChatMessage, len(turns))
	for i, t := range turns {
		out[i] = llm.ChatMessage{Role: t.Role, Content: t.Content}
	}
	return out, nil
}

// Scored pairs a turn with its similarity to a query.
type Scored struct {
	Turn  ChatTurn
	Score float64
}

// RetrieveSimilar ranks the session's indexed turns by cosine
// similarity to the query and returns the top limit. Precision is
// limited by the vectorizer; with the default hashed bag-of-words this
// is an approximation, not semantic search. Returns nil when indexing
// is disabled.
func (m *Manager) RetrieveSimilar(sessionID, query string, limit int) ([]Scored, error) {
	if m.vectorizer == nil {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	queryVec := m.vectorizer.Vectorize(query)
	byTurn := m.vectors[sessionID]

	scored := make([]Scored, 0, len(s.Turns))
	for _, t := range s.Turns {
		vec, indexed := byTurn[t.ID]
		if !indexed {
			continue
		}
		scored = append(scored, Scored{Turn: t, Score: cosine(queryVec, vec)})
	}

	slices.SortFunc(scored, func(a, b Scored) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// UpdateContext shallow-merges partial into the session's context.
func (m *Manager) UpdateContext(sessionID string, partial SessionContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	s.Context.merge(partial)
	s.LastUpdate = m.now()
	return nil
}

// Session returns a copy of the session, or false if unknown.
func (m *Manager) Session(sessionID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// Sessions returns copies of all sessions, sorted by id.
func (m *Manager) Sessions() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.clone())
	}
	slices.SortFunc(out, func(a, b Session) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// ClearOldSessions deletes sessions whose last update is older than
// maxAge (the configured default when non-positive) and returns how
// many were removed. Deleted sessions are gone; export first if the
// data matters.
func (m *Manager) ClearOldSessions(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = m.cfg.MaxSessionAge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for id, s := range m.sessions {
		if s.LastUpdate.Before(cutoff) {
			delete(m.sessions, id)
			delete(m.vectors, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("swept inactive sessions", "removed", removed)
	}
	return removed
}
