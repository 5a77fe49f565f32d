package matcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maine/hn_keyword_bot/internal/news"
)

func teamSet(teams ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(teams))
	for _, team := range teams {
		set[team] = struct{}{}
	}
	return set
}

func TestCompile_ReverseIndex(t *testing.T) {
	m := Compile(news.Snapshot{
		"B": {"kafka", "redis"},
		"A": {"redis"},
		"C": {"", "Redis"},
	})

	// команды по возрастанию, слова в порядке хранения, пустое слово отброшено
	assert.Equal(t, []string{"redis", "kafka", "Redis"}, m.Keywords())
	assert.Equal(t, []string{"A", "B"}, m.TeamsFor("redis"))
	assert.Equal(t, []string{"B"}, m.TeamsFor("kafka"))
	assert.Equal(t, []string{"C"}, m.TeamsFor("Redis"))
	assert.Nil(t, m.TeamsFor("go"))
	assert.Equal(t, 3, m.Len())
}

func TestCompile_DuplicateKeywordWithinTeam(t *testing.T) {
	m := Compile(news.Snapshot{"A": {"go", "go"}})

	assert.Equal(t, []string{"go"}, m.Keywords())
	assert.Equal(t, []string{"A"}, m.TeamsFor("go"))
}

func TestCombineText(t *testing.T) {
	tests := []struct {
		name string
		item news.Item
		want string
	}{
		{
			name: "all fields",
			item: news.Item{URL: "https://a.io", Title: "Title", Text: "Body"},
			want: "https://a.io\nTitle\nBody\n",
		},
		{
			name: "title only",
			item: news.Item{Title: "New Redis release"},
			want: "New Redis release\n",
		},
		{
			name: "url and text",
			item: news.Item{URL: "https://a.io", Text: "Body"},
			want: "https://a.io\nBody\n",
		},
		{
			name: "empty",
			item: news.Item{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CombineText(tt.item))
		})
	}
}

func TestMatcher_Classify(t *testing.T) {
	tests := []struct {
		name     string
		snapshot news.Snapshot
		item     news.Item
		want     map[string]struct{}
	}{
		{
			name:     "shared keyword credits every owner",
			snapshot: news.Snapshot{"A": {"redis"}, "B": {"kafka", "redis"}},
			item:     news.Item{Title: "New Redis release"},
			want:     teamSet("A", "B"),
		},
		{
			name:     "substring of a longer word does not match",
			snapshot: news.Snapshot{"A": {"go"}},
			item:     news.Item{Title: "gopher conference"},
			want:     teamSet(),
		},
		{
			name:     "whole word matches case-insensitively",
			snapshot: news.Snapshot{"A": {"go"}},
			item:     news.Item{Title: "Why GO is fast"},
			want:     teamSet("A"),
		},
		{
			name:     "word inside url is matched between punctuation",
			snapshot: news.Snapshot{"A": {"github"}},
			item:     news.Item{URL: "https://github.com/x/y"},
			want:     teamSet("A"),
		},
		{
			name:     "underscore is a word character",
			snapshot: news.Snapshot{"A": {"redis"}},
			item:     news.Item{Title: "my_redis_fork"},
			want:     teamSet(),
		},
		{
			name:     "keyword spanning a field boundary is not matched",
			snapshot: news.Snapshot{"A": {"foo bar"}},
			item:     news.Item{Title: "foo", Text: "bar"},
			want:     teamSet(),
		},
		{
			name:     "special characters are literal",
			snapshot: news.Snapshot{"A": {"a.c"}, "B": {"(x|y)"}},
			item:     news.Item{Title: "abc and x and y"},
			want:     teamSet(),
		},
		{
			name:     "regex metacharacters inside a word-bounded keyword",
			snapshot: news.Snapshot{"A": {"node.js"}},
			item:     news.Item{Title: "Deploying node.js apps"},
			want:     teamSet("A"),
		},
		{
			name:     "distinct non-overlapping keywords all earn credit",
			snapshot: news.Snapshot{"A": {"rust"}, "B": {"zig"}},
			item:     news.Item{Title: "Rust vs Zig"},
			want:     teamSet("A", "B"),
		},
		{
			name:     "empty snapshot matches nothing",
			snapshot: news.Snapshot{},
			item:     news.Item{Title: "anything at all"},
			want:     teamSet(),
		},
		{
			name:     "multi-word keyword",
			snapshot: news.Snapshot{"A": {"machine learning"}},
			item:     news.Item{Text: "Applied Machine Learning at scale"},
			want:     teamSet("A"),
		},
		{
			name:     "non-ascii letters fold",
			snapshot: news.Snapshot{"A": {"NAÏVE"}},
			item:     news.Item{Title: "a naïve approach"},
			want:     teamSet("A"),
		},
		{
			name:     "long s folds to s inside a word",
			snapshot: news.Snapshot{"A": {"task"}},
			item:     news.Item{Title: "ta\u017fk list"},
			want:     teamSet("A"),
		},
		{
			name:     "kelvin sign folds to k inside a word",
			snapshot: news.Snapshot{"A": {"skip"}},
			item:     news.Item{Title: "s\u212aip it"},
			want:     teamSet("A"),
		},
		{
			name:     "folded non-ascii letter at the edge is not a word character",
			snapshot: news.Snapshot{"A": {"ok"}},
			item:     news.Item{Title: "o\u212a"},
			want:     teamSet(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Compile(tt.snapshot)
			assert.Equal(t, tt.want, m.Classify(tt.item))
		})
	}
}

func TestMatcher_LeftmostFirst(t *testing.T) {
	t.Run("earlier keyword in K wins the shared span", func(t *testing.T) {
		// K = [new york, york]: на позиции "new" совпадает только "new york",
		// "york" внутри засчитанного вхождения кредит не получает
		m := Compile(news.Snapshot{"A": {"new york"}, "B": {"york"}})
		assert.Equal(t, teamSet("A"), m.Classify(news.Item{Title: "New York times"}))
	})

	t.Run("same start, first alternative in K wins", func(t *testing.T) {
		// K = [new, new york]: в одной позиции побеждает "new"
		m := Compile(news.Snapshot{"A": {"new"}, "B": {"new york"}})
		assert.Equal(t, teamSet("A"), m.Classify(news.Item{Title: "new york"}))
	})

	t.Run("longer keyword first in K wins the same start", func(t *testing.T) {
		m := Compile(news.Snapshot{"A": {"new york"}, "B": {"new"}})
		assert.Equal(t, teamSet("A"), m.Classify(news.Item{Title: "new york"}))
	})

	t.Run("later independent occurrence is still credited", func(t *testing.T) {
		m := Compile(news.Snapshot{"A": {"new york"}, "B": {"york"}})
		assert.Equal(t, teamSet("A", "B"), m.Classify(news.Item{Title: "New York, then York again"}))
	})

	t.Run("case variants are distinct keywords, first one wins", func(t *testing.T) {
		// "Redis" и "redis" - разные строки, но совпадают на одном и том же месте
		m := Compile(news.Snapshot{"A": {"Redis"}, "B": {"redis"}})
		assert.Equal(t, teamSet("A"), m.Classify(news.Item{Title: "redis 8"}))
	})

	t.Run("leftmost occurrence wins over lower index", func(t *testing.T) {
		// K = [b c, a b]: "a b" начинается левее и выигрывает, "b c" перекрыт
		m := Compile(news.Snapshot{"A": {"b c"}, "B": {"a b"}})
		assert.Equal(t, teamSet("B"), m.Classify(news.Item{Title: "a b c"}))
	})

	t.Run("boundary failure does not block a later alternative", func(t *testing.T) {
		// у "go-" нет \b справа (между '-' и пробелом), поэтому позиция достаётся "go"
		m := Compile(news.Snapshot{"A": {"go-"}, "B": {"go"}})
		assert.Equal(t, teamSet("B"), m.Classify(news.Item{Title: "go- fast"}))
		assert.Equal(t, teamSet("A"), m.Classify(news.Item{Title: "go-fast"}))
	})
}

func TestMatcher_Match_KeywordsPerTeam(t *testing.T) {
	m := Compile(news.Snapshot{"A": {"redis", "kafka"}, "B": {"kafka"}})

	res := m.Match(news.Item{Title: "Kafka or Redis? kafka!"})
	assert.Equal(t, []string{"kafka", "redis"}, res.Teams["A"])
	assert.Equal(t, []string{"kafka"}, res.Teams["B"])
	assert.Equal(t, []string{"A", "B"}, res.SortedTeams())
}

func TestMatcher_Deterministic(t *testing.T) {
	m := Compile(news.Snapshot{
		"A": {"redis", "go"},
		"B": {"kafka", "redis"},
		"C": {"postgres"},
	})
	item := news.Item{
		URL:   "https://example.com/redis-vs-postgres",
		Title: "Redis vs Postgres for queues",
		Text:  "We tried kafka too. Go clients everywhere.",
	}

	first := m.Classify(item)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, m.Classify(item))
	}
	assert.Equal(t, teamSet("A", "B", "C"), first)
}

func TestMatcher_UniqueKeywordProperty(t *testing.T) {
	snapshot := news.Snapshot{
		"alpha": {"kubernetes"},
		"beta":  {"postgres"},
		"gamma": {"wasm"},
	}
	m := Compile(snapshot)

	for team, keywords := range snapshot {
		kw := keywords[0]

		whole := m.Classify(news.Item{Title: "about " + kw + " today"})
		assert.Equal(t, teamSet(team), whole, "whole word %q", kw)

		embedded := m.Classify(news.Item{Title: "about x" + kw + "y today"})
		assert.Empty(t, embedded, "embedded %q", kw)
	}
}

func TestMatcher_EmptyMatcherLongText(t *testing.T) {
	m := Compile(nil)
	text := strings.Repeat("lorem ipsum ", 10000)
	assert.Empty(t, m.MatchText(text).Teams)
}

func TestAtBoundary(t *testing.T) {
	text := []rune("a+b")
	assert.True(t, atBoundary(text, 0))
	assert.True(t, atBoundary(text, 1))
	assert.True(t, atBoundary(text, 2))
	assert.True(t, atBoundary(text, 3))
	assert.False(t, atBoundary([]rune("ab"), 1))
	assert.False(t, atBoundary([]rune("++"), 1))
	assert.False(t, atBoundary(nil, 0))
}
