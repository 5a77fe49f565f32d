package news

import "time"

// Item описывает запись ленты сразу после получения из источника.
// ID строго возрастает за всё время жизни ленты.
type Item struct {
	ID    int64     `json:"id"`
	Type  string    `json:"type,omitempty"`
	By    string    `json:"by,omitempty"`
	URL   string    `json:"url,omitempty"`
	Title string    `json:"title,omitempty"`
	Text  string    `json:"text,omitempty"` // уже очищен от HTML
	Time  time.Time `json:"time"`
}

// Snapshot - неизменяемый на время запуска снимок подписок: команда → ключевые слова.
// Порядок слов внутри команды совпадает с порядком хранения.
type Snapshot map[string][]string

// Teams возвращает множество команд из снимка.
func (s Snapshot) Teams() []string {
	teams := make([]string, 0, len(s))
	for team := range s {
		teams = append(teams, team)
	}
	return teams
}

// Destination указывает, куда доставлять уведомления команды.
type Destination struct {
	Kind   string `json:"kind"`   // slack, discord, telegram
	Target string `json:"target"` // канал, chat_id или URL вебхука
	Token  string `json:"-"`
}

// RunSummary - итог одного запуска, отдаётся вызывающему окружению.
type RunSummary struct {
	RunID             string        `json:"run_id"`
	StartCheckpoint   int64         `json:"start_checkpoint"`
	Checkpoint        int64         `json:"checkpoint"`
	ItemsFetched      int           `json:"items_fetched"`
	ItemsMatched      int           `json:"items_matched"`
	ItemsAlreadySeen  int           `json:"items_already_seen"`
	NotificationsSent int           `json:"notifications_sent"`
	DispatchFailures  int           `json:"dispatch_failures"`
	Duration          time.Duration `json:"duration_ns"`
}

// ItemMatch - результат классификации одной записи (для пробного запуска).
type ItemMatch struct {
	Item  Item                `json:"item"`
	Teams map[string][]string `json:"teams"`
}

// TeamStats объединяет настройки команды и счётчики.
type TeamStats struct {
	TeamID        string   `json:"team_id"`
	Keywords      []string `json:"keywords"`
	Channel       string   `json:"channel"`
	Notifications int64    `json:"notifications"`
}
