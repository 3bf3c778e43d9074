package domain

// TranscriptionStatus описывает этап жизненного цикла расшифровки актива
type TranscriptionStatus string

const (
	StatusNotStarted TranscriptionStatus = "not_started"
	StatusInProgress TranscriptionStatus = "in_progress"
	StatusSubmitted  TranscriptionStatus = "submitted"
	StatusCompleted  TranscriptionStatus = "completed"
)

// transitions — единственная таблица допустимых переходов статуса.
// Любое изменение статуса в сервисах проходит через CanTransition.
var transitions = map[TranscriptionStatus][]TranscriptionStatus{
	StatusNotStarted: {StatusInProgress},
	StatusInProgress: {StatusInProgress, StatusSubmitted},
	StatusSubmitted:  {StatusCompleted, StatusInProgress},
	StatusCompleted:  {},
}

// CanTransition проверяет, допустим ли переход из from в to
func CanTransition(from, to TranscriptionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Editable сообщает, можно ли сохранять текст в этом статусе
func (s TranscriptionStatus) Editable() bool {
	return s == StatusNotStarted || s == StatusInProgress
}

func (s TranscriptionStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusSubmitted, StatusCompleted:
		return true
	}
	return false
}
