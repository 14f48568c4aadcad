package player

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// Интерфейсы, которые реализуются в infrastructure слое.
// ══════════════════════════════════════════════════════════════════════════════

// Credential - учётные данные сессии (bearer-токен).
type Credential string

// IsEmpty возвращает true, если токен отсутствует.
func (c Credential) IsEmpty() bool {
	return c == ""
}

// ProfileCache - локальный кеш профиля инициатора.
type ProfileCache interface {
	// Get возвращает профиль из кеша. Промах кеша возвращает (nil, nil).
	Get(ctx context.Context, cred Credential) (*Player, error)

	// Set сохраняет профиль в кеш.
	Set(ctx context.Context, cred Credential, p *Player) error
}

// IdentityProvider - резервный источник профиля: аутентифицированная сессия.
type IdentityProvider interface {
	// Identity возвращает профиль из сессии или ошибку, если сессия недействительна.
	Identity(ctx context.Context, cred Credential) (*Player, error)
}

// Directory - удалённый справочник игроков.
type Directory interface {
	// ListPlayers возвращает нормализованный пул кандидатов без игрока excludeID.
	// Никогда не возвращает ошибку: сбой сети даёт пустой пул.
	ListPlayers(ctx context.Context, cred Credential, excludeID string) []Player
}
