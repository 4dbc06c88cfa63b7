package haiku

import (
	"regexp"
	"strings"
	"sync"
)

var (
	urlPattern   = regexp.MustCompile(`https?://\S+`)
	nonWordChars = regexp.MustCompile(`[^a-z']+`)
	vowelGroups  = regexp.MustCompile(`[aeiouy]+`)
)

// Counter resolves syllable counts, preferring the curated word table and
// falling back to a vowel-group heuristic. The table is swapped by command
// handlers while worker goroutines read it, so access goes through mu.
type Counter struct {
	mu    sync.RWMutex
	words map[string]int
}

func NewCounter(words map[string]int) *Counter {
	if words == nil {
		words = make(map[string]int)
	}
	return &Counter{words: words}
}

// SetWords swaps in a freshly loaded word table.
func (c *Counter) SetWords(words map[string]int) {
	c.mu.Lock()
	c.words = words
	c.mu.Unlock()
}

// Word returns the syllable count for a single lowercase word.
func (c *Counter) Word(word string) int {
	c.mu.RLock()
	n, ok := c.words[word]
	c.mu.RUnlock()
	if ok {
		return n
	}
	return heuristic(word)
}

// heuristic counts vowel groups, dropping a silent trailing e. Always at
// least 1 for a non-empty word.
func heuristic(word string) int {
	if word == "" {
		return 0
	}
	n := len(vowelGroups.FindAllString(word, -1))
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && n > 1 {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Words tokenizes message text into lowercase words: URLs are stripped and
// punctuation becomes a word break.
func Words(text string) []string {
	lowered := strings.ToLower(urlPattern.ReplaceAllString(text, " "))
	cleaned := nonWordChars.ReplaceAllString(lowered, " ")
	return strings.Fields(cleaned)
}

// counted pairs a word with its syllable count.
type counted struct {
	word      string
	syllables int
}

// Analyze tokenizes text and counts each word. The total is the sum over
// all words.
func (c *Counter) Analyze(text string) ([]counted, int) {
	words := Words(text)
	out := make([]counted, 0, len(words))
	total := 0
	for _, w := range words {
		n := c.Word(w)
		out = append(out, counted{word: w, syllables: n})
		total += n
	}
	return out, total
}

// FormatHaiku breaks the counted words into three lines at the 5 and 12
// syllable boundaries (nearest word boundary at or past each target).
func FormatHaiku(words []counted) string {
	var lines [3][]string
	line, cum := 0, 0
	for _, w := range words {
		lines[line] = append(lines[line], w.word)
		cum += w.syllables
		if line == 0 && cum >= 5 {
			line = 1
		} else if line == 1 && cum >= 12 {
			line = 2
		}
	}
	return strings.Join(lines[0], " ") + "\n" +
		strings.Join(lines[1], " ") + "\n" +
		strings.Join(lines[2], " ")
}
