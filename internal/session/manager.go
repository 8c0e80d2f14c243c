package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/meliprint/meliprint/internal/entities"
	"github.com/meliprint/meliprint/pkg/cache"
)

// Store is the durable side of the session layer; the Postgres repo
// implements it.
type Store interface {
	GetSession(ctx context.Context, sid string) ([]byte, error)
	SaveSession(ctx context.Context, sid string, data []byte, expiresAt time.Time) error
	DeleteSession(ctx context.Context, sid string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

type Config struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager issues the session cookie and keeps session state in the
// store, with an LRU cache in front to spare the database on every
// request.
type Manager struct {
	logger *slog.Logger
	store  Store
	cache  *cache.LRUCache[entities.Session]
	cfg    Config
}

func NewManager(logger *slog.Logger, store Store, cache *cache.LRUCache[entities.Session], cfg Config) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "meliprint_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Manager{
		logger: logger.With(slog.String("component", "session")),
		store:  store,
		cache:  cache,
		cfg:    cfg,
	}
}

// Create starts a new session and sets the cookie on the response.
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, sess entities.Session) (entities.Session, error) {
	sess.ID = uuid.NewString()
	if err := m.persist(ctx, sess); err != nil {
		return entities.Session{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(m.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: m.sameSite(),
	})
	return sess, nil
}

// Load resolves the request's session from cache or store.
func (m *Manager) Load(ctx context.Context, r *http.Request) (entities.Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return entities.Session{}, entities.ErrSessionNotFound
	}

	if sess, ok := m.cache.Get(cookie.Value); ok {
		return sess, nil
	}

	data, err := m.store.GetSession(ctx, cookie.Value)
	if err != nil {
		return entities.Session{}, err
	}

	var sess entities.Session
	if err := sess.Unmarshal(data); err != nil {
		return entities.Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	m.cache.Set(sess.ID, sess)
	return sess, nil
}

// Update rewrites an existing session in place.
func (m *Manager) Update(ctx context.Context, sess entities.Session) error {
	if sess.ID == "" {
		return entities.ErrSessionNotFound
	}
	return m.persist(ctx, sess)
}

// Destroy removes the session and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err == nil && cookie.Value != "" {
		m.cache.Delete(cookie.Value)
		if err := m.store.DeleteSession(ctx, cookie.Value); err != nil && !errors.Is(err, entities.ErrSessionNotFound) {
			return err
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: m.sameSite(),
	})
	return nil
}

func (m *Manager) persist(ctx context.Context, sess entities.Session) error {
	data, err := sess.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := m.store.SaveSession(ctx, sess.ID, data, time.Now().Add(m.cfg.TTL)); err != nil {
		return err
	}
	m.cache.Set(sess.ID, sess)
	return nil
}

const sweepInterval = 10 * time.Minute

// StartSweeper removes expired session rows in the background until ctx
// is cancelled.
func (m *Manager) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := m.store.DeleteExpiredSessions(ctx)
				if err != nil {
					m.logger.Warn("session sweep failed", slog.Any("error", err))
					continue
				}
				if n > 0 {
					m.logger.Debug("expired sessions removed", slog.Int64("count", n))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Cross-site cookies are needed in production where the SPA is served
// from another origin.
func (m *Manager) sameSite() http.SameSite {
	if m.cfg.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
