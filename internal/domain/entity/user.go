package entity

// UserState шаг диалога с Telegram-фронтендом
type UserState string

const (
	StateMainMenu      UserState = "main_menu"
	StateAwaitingPhoto UserState = "awaiting_photo"
	StateProcessing    UserState = "processing"
)

// User собеседник бота. Снимки не хранятся, только счётчик проверок.
type User struct {
	ID            int64
	ChatID        int64
	State         UserState
	Checks        int    // сколько снимков проверено
	LastRequestID string // ID последнего запроса к предиктору, для поиска в логах
}

func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

func (u *User) SetState(state UserState) {
	u.State = state
}

// RecordCheck отмечает завершённую проверку снимка.
func (u *User) RecordCheck(requestID string) {
	u.Checks++
	u.LastRequestID = requestID
}
