package server

import (
	"time"

	"github.com/google/uuid"
	"github.com/johnstarich/banklink/metrics"
	"github.com/johnstarich/banklink/selector"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

const defaultSessionTTL = 30 * time.Minute

var errSessionNotFound = errors.New("Selector session not found")

// selectorSession is one open institution selector, driven over HTTP
type selectorSession struct {
	ID      string
	Tag     string
	widget  *selector.Widget
	view    *selector.ViewRenderer
	service string
	// redirect is the agreement URL the widget navigated to, if any
	redirect *atomic.String
}

func newSelectorSession(tag string) *selectorSession {
	return &selectorSession{
		ID:       uuid.New().String(),
		Tag:      tag,
		view:     selector.NewViewRenderer(),
		redirect: atomic.NewString(""),
	}
}

// Replace implements selector.Navigator
func (s *selectorSession) Replace(url string) {
	s.redirect.Store(url)
}

type sessionJSON struct {
	ID       string        `json:"id"`
	Tag      string        `json:"tag"`
	State    string        `json:"state"`
	Country  string        `json:"country"`
	Search   string        `json:"search"`
	View     selector.View `json:"view"`
	Redirect string        `json:"redirect,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func (s *selectorSession) JSON() sessionJSON {
	result := sessionJSON{
		ID:       s.ID,
		Tag:      s.Tag,
		State:    s.widget.State().String(),
		Country:  s.widget.Country(),
		Search:   s.widget.SearchText(),
		View:     s.view.Snapshot(),
		Redirect: s.redirect.Load(),
	}
	if err := s.widget.Err(); err != nil {
		result.Error = err.Error()
	}
	return result
}

// sessionStore holds the open selector sessions, expiring idle ones
type sessionStore struct {
	sessions *cache.Cache
	metrics  *metrics.Metrics
}

func newSessionStore(ttl time.Duration, m *metrics.Metrics) *sessionStore {
	s := &sessionStore{
		sessions: cache.New(ttl, ttl/5+1),
		metrics:  m,
	}
	s.sessions.OnEvicted(func(string, interface{}) {
		s.metrics.SetSessions(s.sessions.ItemCount())
	})
	return s
}

func (s *sessionStore) Add(session *selectorSession) {
	s.sessions.SetDefault(session.ID, session)
	s.metrics.SetSessions(s.sessions.ItemCount())
}

// Get returns the session and extends its lifetime
func (s *sessionStore) Get(id string) (*selectorSession, error) {
	value, found := s.sessions.Get(id)
	if !found {
		return nil, errors.Wrapf(errSessionNotFound, "%q", id)
	}
	session := value.(*selectorSession)
	s.sessions.SetDefault(id, session)
	return session, nil
}

func (s *sessionStore) Remove(id string) {
	s.sessions.Delete(id)
}
