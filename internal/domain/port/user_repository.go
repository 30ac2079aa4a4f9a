package port

import (
	"context"

	"caries-demo/internal/domain/entity"
)

// UserRepository хранилище состояний диалога Telegram-фронтенда.
// Реализации возвращают копии: изменения видны только после Save или UpdateState.
type UserRepository interface {
	// Get возвращает пользователя по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save сохраняет состояние пользователя
	Save(ctx context.Context, user *entity.User) error

	// UpdateState атомарно меняет состояние и возвращает обновлённого пользователя
	UpdateState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error)
}
