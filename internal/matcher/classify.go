package matcher

import (
	"sort"
	"strings"

	"github.com/maine/hn_keyword_bot/internal/news"
)

// Result - итог классификации одной записи.
type Result struct {
	// Teams: команда → засчитанные ей ключевые слова в порядке первого вхождения.
	Teams map[string][]string
}

// TeamSet возвращает множество заинтересованных команд.
func (r Result) TeamSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.Teams))
	for team := range r.Teams {
		set[team] = struct{}{}
	}
	return set
}

// SortedTeams возвращает команды по возрастанию идентификатора.
func (r Result) SortedTeams() []string {
	teams := make([]string, 0, len(r.Teams))
	for team := range r.Teams {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	return teams
}

// occurrence - вхождение слова K[kw] в диапазоне рун [start, end).
type occurrence struct {
	start, end int
	kw         int32
}

// CombineText собирает текст записи для поиска: URL, заголовок и тело,
// каждое присутствующее поле завершается переводом строки.
func CombineText(item news.Item) string {
	var sb strings.Builder
	for _, field := range []string{item.URL, item.Title, item.Text} {
		if field == "" {
			continue
		}
		sb.WriteString(field)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Classify возвращает множество команд, заинтересованных в записи.
// Пустое множество, если ни одно слово не найдено.
func (m *Matcher) Classify(item news.Item) map[string]struct{} {
	return m.Match(item).TeamSet()
}

// Match классифицирует запись и сохраняет, за какие слова засчитана каждая команда.
func (m *Matcher) Match(item news.Item) Result {
	return m.MatchText(CombineText(item))
}

// MatchText классифицирует произвольный текст.
func (m *Matcher) MatchText(text string) Result {
	res := Result{Teams: map[string][]string{}}
	if len(m.keywords) == 0 {
		return res
	}

	for _, occ := range m.credit(m.scan(text)) {
		keyword := m.keywords[occ.kw]
		for _, team := range m.teams[occ.kw] {
			if !containsString(res.Teams[team], keyword) {
				res.Teams[team] = append(res.Teams[team], keyword)
			}
		}
	}
	return res
}

// scan находит за один проход автомата все вхождения, у которых выполняются
// граничные условия \b с обеих сторон.
func (m *Matcher) scan(text string) []occurrence {
	original := []rune(text)
	var found []occurrence

	state := int32(0)
	for i, r := range original {
		r = foldRune(r)
		for {
			if next, ok := m.nodes[state].next[r]; ok {
				state = next
				break
			}
			if state == 0 {
				break
			}
			state = m.nodes[state].fail
		}

		for _, kw := range m.nodes[state].out {
			end := i + 1
			start := end - m.lengths[kw]
			if atBoundary(original, start) && atBoundary(original, end) {
				found = append(found, occurrence{start: start, end: end, kw: kw})
			}
		}
	}
	return found
}

// credit оставляет непересекающиеся вхождения по правилу «самое левое,
// затем первое в K», продолжая поиск с конца засчитанного вхождения.
func (m *Matcher) credit(found []occurrence) []occurrence {
	sort.Slice(found, func(i, j int) bool {
		if found[i].start != found[j].start {
			return found[i].start < found[j].start
		}
		return found[i].kw < found[j].kw
	})

	credited := found[:0]
	pos := 0
	for _, occ := range found {
		if occ.start < pos {
			continue
		}
		credited = append(credited, occ)
		pos = occ.end
	}
	return credited
}
