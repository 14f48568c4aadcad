package preferences

import (
	"context"
)

// Ключи хранилища "ключ-значение". Значения сериализуются в JSON.
const (
	KeyMatchingPreferences = "matchingPreferences"
	KeyFavoritePlayers     = "favoritePlayers"
)

// Repository - хранилище настроек подбора.
type Repository interface {
	// Load возвращает сохранённые настройки или настройки по умолчанию.
	// Ошибка чтения не фатальна: возвращаются значения по умолчанию.
	Load(ctx context.Context, playerID string) MatchingPreferences

	// Save накладывает частичное обновление на последние загруженные
	// настройки, сохраняет и возвращает результат.
	Save(ctx context.Context, playerID string, patch Patch) (MatchingPreferences, error)
}

// FavoritesRepository - множество избранных игроков.
type FavoritesRepository interface {
	// Add добавляет id, если его ещё нет. Возвращает актуальный список.
	Add(ctx context.Context, playerID, favoriteID string) ([]string, error)

	// List возвращает список или пустой список, если ничего не сохранено.
	List(ctx context.Context, playerID string) []string
}
