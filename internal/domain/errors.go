package domain

import "errors"

// Ошибки ядра резервирования и рецензирования. Хендлеры отображают их
// в HTTP-статусы через errors.Is.
var (
	// ErrNotFound — актив или версия не существует
	ErrNotFound = errors.New("not found")

	// ErrConflict — аренду держит другой пользователь
	ErrConflict = errors.New("asset is reserved by another user")

	// ErrExpired — собственная аренда вызывающего истекла и требует
	// повторного захвата. Отличается от ErrConflict: клиент должен
	// переоформить аренду, а не уходить на другую страницу
	ErrExpired = errors.New("reservation expired")

	// ErrNoLease — операция требует аренды, а вызывающий её не держит
	ErrNoLease = errors.New("no active reservation held by caller")

	// ErrStaleVersion — supersedes не совпадает с активной версией актива
	ErrStaleVersion = errors.New("version is no longer the active version")

	// ErrInvalidTransition — переход статуса вне таблицы переходов
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSelfReview — автор пытается рецензировать собственную версию
	ErrSelfReview = errors.New("self review is not allowed")

	// ErrNotAuthor — отправить на рецензию может только автор активной версии
	ErrNotAuthor = errors.New("caller is not the author of the active version")

	// ErrRateLimited — превышен лимит обращений к OCR по активу
	ErrRateLimited = errors.New("rate limited, try again later")

	// ErrNotEditable — сохранение допустимо только в редактируемых статусах
	ErrNotEditable = errors.New("asset is not editable in its current status")

	// ErrNoUndo — курсор уже на первой версии цепочки
	ErrNoUndo = errors.New("nothing to undo")

	// ErrNoRedo — впереди нет версий либо ветка отброшена форком
	ErrNoRedo = errors.New("nothing to redo")
)
