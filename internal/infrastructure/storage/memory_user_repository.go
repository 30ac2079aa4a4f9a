package storage

import (
	"context"
	"sync"

	"caries-demo/internal/domain/entity"
	"caries-demo/internal/domain/port"
)

// MemoryUserRepository in-memory хранилище состояний; бот и HTTP живут в одном процессе
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[int64]entity.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]entity.User),
	}
}

func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user := r.loadLocked(userID, chatID)
	return &user, nil
}

func (r *MemoryUserRepository) Save(ctx context.Context, user *entity.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.users[user.ID] = *user
	r.mu.Unlock()

	return nil
}

func (r *MemoryUserRepository) UpdateState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user := r.loadLocked(userID, chatID)
	user.SetState(state)
	r.users[userID] = user

	return &user, nil
}

// Len количество известных пользователей
func (r *MemoryUserRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// loadLocked достаёт пользователя или регистрирует нового. Вызывается под r.mu.
func (r *MemoryUserRepository) loadLocked(userID, chatID int64) entity.User {
	if user, ok := r.users[userID]; ok {
		return user
	}
	user := *entity.NewUser(userID, chatID)
	r.users[userID] = user
	return user
}

var _ port.UserRepository = (*MemoryUserRepository)(nil)
