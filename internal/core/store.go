package core

import (
	"context"
	"errors"

	"github.com/dkeye/Parley/internal/domain"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrUsernameTaken   = errors.New("username taken")
)

// Store is the persistence collaborator. The relay core never owns durable
// state; a message must be persisted here before its live event is fanned
// out, and clients backfill missed events through FetchHistory.
type Store interface {
	PersistMessage(ctx context.Context, sender, receiver domain.UserID, content string) (*domain.Message, error)
	UpdateMessage(ctx context.Context, id domain.MessageID, content string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error)
	FetchHistory(ctx context.Context, a, b domain.UserID) ([]domain.Message, error)

	CreateUser(ctx context.Context, username, email, passwordHash string) (*domain.User, error)
	LookupUser(ctx context.Context, id domain.UserID) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	Friends(ctx context.Context, id domain.UserID) ([]domain.Friend, error)
	AddFriend(ctx context.Context, id domain.UserID, friendUsername string) error
}
