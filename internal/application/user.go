package app

import (
	"context"

	"caries-demo/internal/domain/entity"
	"caries-demo/internal/domain/port"
)

// UserService ведёт состояние диалога пользователей Telegram-фронтенда.
type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	return s.repo.UpdateState(ctx, userID, chatID, state)
}

func (s *UserService) BeginCheck(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateAwaitingPhoto)
}

func (s *UserService) BeginProcessing(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateProcessing)
}

func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateMainMenu)
}

// RecordCheck сохраняет факт успешной проверки снимка.
func (s *UserService) RecordCheck(ctx context.Context, userID, chatID int64, requestID string) (*entity.User, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	user.RecordCheck(requestID)
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}
