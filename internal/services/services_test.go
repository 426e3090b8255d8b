package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"linkup-chat/internal/delivery"
	"linkup-chat/internal/domain/conversation"
	"linkup-chat/internal/domain/user"
	"linkup-chat/internal/presence"
	"linkup-chat/internal/repository"
	"linkup-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	db       *gorm.DB
	registry *presence.Registry
	convs    *ConversationService
	groups   *GroupService
	users    repository.UserRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&user.User{},
		&conversation.Conversation{},
		&conversation.Participant{},
		&conversation.Message{},
		&conversation.MessageRead{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	l := &logger.Logger{Logger: zap.NewNop()}
	registry := presence.NewRegistry()
	engine := delivery.NewEngine(registry, l)
	convRepo := repository.NewConversationRepository(db)
	userRepo := repository.NewUserRepository(db)

	return &testEnv{
		db:       db,
		registry: registry,
		convs:    NewConversationService(db, convRepo, userRepo, engine, l),
		groups:   NewGroupService(db, convRepo, userRepo, engine, l),
		users:    userRepo,
	}
}

func (e *testEnv) createUser(t *testing.T, name string) user.User {
	t.Helper()
	u := user.User{
		ID:       uuid.New(),
		Name:     name,
		Username: name,
	}
	if err := e.users.Create(context.Background(), &u); err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return u
}

// connect registers a capturing fake connection for the user, as if they had
// completed socket setup.
func (e *testEnv) connect(userID uuid.UUID) *fakeConn {
	conn := &fakeConn{}
	e.registry.Register(userID, conn)
	return conn
}

type fakeConn struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (c *fakeConn) SendMessage(payload []byte) {
	c.mu.Lock()
	c.msgs = append(c.msgs, payload)
	c.mu.Unlock()
}

func (c *fakeConn) received() []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(c.msgs))
	for _, raw := range c.msgs {
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) lastEventType() string {
	events := c.received()
	if len(events) == 0 {
		return ""
	}
	t, _ := events[len(events)-1]["type"].(string)
	return t
}
