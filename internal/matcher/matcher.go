// Package matcher компилирует подписки команд в один автомат Ахо–Корасик
// и классифицирует записи ленты за один проход по тексту.
//
// Семантика совпадает с объединением шаблонов \bkw1\b|\bkw2\b|... с флагом
// нечувствительности к регистру: ключевое слово ищется как литерал и только
// целым словом; при пересечении выигрывает самое левое вхождение, а среди
// вхождений с одинаковым началом - слово, стоящее раньше в списке K.
// После засчитанного вхождения поиск продолжается с его конца.
package matcher

import (
	"sort"

	"github.com/maine/hn_keyword_bot/internal/news"
)

// Matcher - скомпилированный снимок подписок. Только для чтения, безопасен
// для конкурентного использования.
type Matcher struct {
	keywords []string   // K: порядок фиксирован на всё время запуска
	teams    [][]string // keywordToTeams по позиции в K
	lengths  []int      // длина слова в рунах

	nodes []node
}

type node struct {
	next map[rune]int32
	fail int32
	out  []int32 // позиции в K для слов, оканчивающихся в этом состоянии (с учётом fail-цепочки)
}

// Compile строит Matcher из снимка подписок.
//
// Команды перебираются по возрастанию идентификатора, слова - в порядке хранения;
// позиция слова в K определяется первым появлением. Пустая строка ключевым словом не считается.
func Compile(snapshot news.Snapshot) *Matcher {
	teamIDs := snapshot.Teams()
	sort.Strings(teamIDs)

	m := &Matcher{
		nodes: []node{{next: map[rune]int32{}}},
	}
	index := make(map[string]int)

	for _, team := range teamIDs {
		for _, keyword := range snapshot[team] {
			if keyword == "" {
				continue
			}

			pos, ok := index[keyword]
			if !ok {
				pos = len(m.keywords)
				index[keyword] = pos
				m.keywords = append(m.keywords, keyword)
				m.teams = append(m.teams, nil)
				m.lengths = append(m.lengths, m.insert(keyword, int32(pos)))
			}

			if !containsString(m.teams[pos], team) {
				m.teams[pos] = append(m.teams[pos], team)
			}
		}
	}

	m.link()
	return m
}

// insert добавляет слово в бор и возвращает его длину в рунах.
func (m *Matcher) insert(keyword string, pos int32) int {
	state := int32(0)
	folded := foldRunes(keyword)
	for _, r := range folded {
		next, ok := m.nodes[state].next[r]
		if !ok {
			next = int32(len(m.nodes))
			m.nodes = append(m.nodes, node{next: map[rune]int32{}})
			m.nodes[state].next[r] = next
		}
		state = next
	}
	m.nodes[state].out = append(m.nodes[state].out, pos)
	return len(folded)
}

// link проставляет fail-ссылки обходом в ширину и объединяет выходы.
func (m *Matcher) link() {
	queue := make([]int32, 0, len(m.nodes))
	for _, child := range m.nodes[0].next {
		m.nodes[child].fail = 0
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]

		for r, v := range m.nodes[u].next {
			f := m.nodes[u].fail
			for f != 0 {
				if _, ok := m.nodes[f].next[r]; ok {
					break
				}
				f = m.nodes[f].fail
			}
			if target, ok := m.nodes[f].next[r]; ok && target != v {
				m.nodes[v].fail = target
			} else {
				m.nodes[v].fail = 0
			}

			if fo := m.nodes[m.nodes[v].fail].out; len(fo) > 0 {
				m.nodes[v].out = append(m.nodes[v].out, fo...)
			}
			queue = append(queue, v)
		}
	}
}

// Keywords возвращает K - различные ключевые слова в фиксированном порядке.
func (m *Matcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

// TeamsFor возвращает команды, подписанные на ключевое слово.
func (m *Matcher) TeamsFor(keyword string) []string {
	for i, kw := range m.keywords {
		if kw == keyword {
			return append([]string(nil), m.teams[i]...)
		}
	}
	return nil
}

// Len - количество различных ключевых слов.
func (m *Matcher) Len() int {
	return len(m.keywords)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
