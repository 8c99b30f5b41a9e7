// Package memstore is an in-memory implementation of the persistence
// collaborator. The production deployment points the REST layer at a real
// relational store; this one backs development and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	users    map[domain.UserID]*domain.User
	byName   map[string]domain.UserID
	friends  map[domain.UserID]map[domain.UserID]struct{}
	messages []*domain.Message
	byID     map[domain.MessageID]*domain.Message
	now      func() time.Time
}

func New() *Store {
	return &Store{
		users:   make(map[domain.UserID]*domain.User),
		byName:  make(map[string]domain.UserID),
		friends: make(map[domain.UserID]map[domain.UserID]struct{}),
		byID:    make(map[domain.MessageID]*domain.Message),
		now:     time.Now,
	}
}

func (s *Store) PersistMessage(_ context.Context, sender, receiver domain.UserID, content string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := &domain.Message{
		ID:         domain.MessageID(uuid.NewString()),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		CreatedAt:  s.now(),
	}
	s.messages = append(s.messages, msg)
	s.byID[msg.ID] = msg
	return cloned(msg), nil
}

func (s *Store) UpdateMessage(_ context.Context, id domain.MessageID, content string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byID[id]
	if !ok {
		return nil, core.ErrMessageNotFound
	}
	msg.Content = content
	return cloned(msg), nil
}

func (s *Store) DeleteMessage(_ context.Context, id domain.MessageID) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byID[id]
	if !ok {
		return nil, core.ErrMessageNotFound
	}
	delete(s.byID, id)
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	return cloned(msg), nil
}

// FetchHistory returns both directions of the conversation in creation
// order, matching what clients use to backfill missed live events.
func (s *Store) FetchHistory(_ context.Context, a, b domain.UserID) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Message
	for _, m := range s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, username, email, _ string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byName[username]; taken {
		return nil, core.ErrUsernameTaken
	}
	u, err := domain.NewUser(domain.UserID(uuid.NewString()), username)
	if err != nil {
		return nil, err
	}
	u.Email = email
	s.users[u.ID] = u
	s.byName[username] = u.ID
	return &domain.User{ID: u.ID, Username: u.Username, Email: u.Email}, nil
}

func (s *Store) LookupUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) Friends(_ context.Context, id domain.UserID) ([]domain.Friend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Friend
	for fid := range s.friends[id] {
		if u, ok := s.users[fid]; ok {
			out = append(out, domain.Friend{ID: u.ID, Username: u.Username, Status: domain.FriendAccepted})
		}
	}
	return out, nil
}

// AddFriend links both directions, like the relational schema does.
func (s *Store) AddFriend(_ context.Context, id domain.UserID, friendUsername string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fid, ok := s.byName[friendUsername]
	if !ok {
		return core.ErrUserNotFound
	}
	link := func(a, b domain.UserID) {
		set, ok := s.friends[a]
		if !ok {
			set = make(map[domain.UserID]struct{})
			s.friends[a] = set
		}
		set[b] = struct{}{}
	}
	link(id, fid)
	link(fid, id)
	return nil
}

func cloned(m *domain.Message) *domain.Message {
	cp := *m
	return &cp
}

var _ core.Store = (*Store)(nil)
