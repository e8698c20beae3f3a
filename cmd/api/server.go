package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/mernchat/server/internal/auth"
	"github.com/mernchat/server/internal/data"
	"github.com/mernchat/server/internal/files"
	"github.com/mernchat/server/internal/relay"
)

// usersStore is the subset of data.UsersStore the handlers need.
type usersStore interface {
	CreateUser(ctx context.Context, username, hashedPassword string) (*data.User, error)
	GetUserByUsername(ctx context.Context, username string) (*data.User, error)
	ListUsers(ctx context.Context) ([]*data.User, error)
}

// messagesStore is the subset of data.MessagesStore the handlers need.
type messagesStore interface {
	GetConversation(ctx context.Context, userA, userB string) ([]*data.Message, error)
}

// server carries the wired dependencies for every HTTP and websocket handler.
type server struct {
	users    usersStore
	msgs     messagesStore
	auth     *auth.JWTManager
	files    *files.Store
	registry *relay.Registry
	relay    *relay.Relay
	origins  []string
	log      *zap.Logger
}

// newServer returns a ready-to-use server wired with stores, auth and relay.
func newServer(users usersStore, msgs messagesStore, authMgr *auth.JWTManager, fileStore *files.Store, reg *relay.Registry, rl *relay.Relay, origins []string, log *zap.Logger) *server {
	if log == nil {
		log = zap.NewNop()
	}
	return &server{
		users:    users,
		msgs:     msgs,
		auth:     authMgr,
		files:    fileStore,
		registry: reg,
		relay:    rl,
		origins:  origins,
		log:      log,
	}
}
