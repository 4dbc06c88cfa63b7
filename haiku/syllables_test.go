package haiku

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicCounts(t *testing.T) {
	cases := []struct {
		word string
		want int
	}{
		{"cat", 1},
		{"hello", 2},
		{"beautiful", 3},
		{"the", 1},
		{"home", 1},  // silent trailing e
		{"table", 2}, // -le keeps its syllable
		{"rhythm", 1},
		{"sky", 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, heuristic(tc.word), "word %q", tc.word)
	}
}

func TestWordTableOverridesHeuristic(t *testing.T) {
	c := NewCounter(map[string]int{"poem": 2, "queue": 1})
	assert.Equal(t, 2, c.Word("poem"))
	assert.Equal(t, 1, c.Word("queue"))
	assert.Equal(t, 1, c.Word("cat"), "unknown words fall back to the heuristic")
}

func TestWordTableSwapWhileWorkersRead(t *testing.T) {
	c := NewCounter(map[string]int{"pond": 1})

	stop := make(chan struct{})
	var writers sync.WaitGroup
	writers.Add(1)
	go func() {
		defer writers.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			c.SetWords(map[string]int{"pond": 1 + i%2})
		}
	}()

	var readers sync.WaitGroup
	for n := 0; n < 4; n++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 1000; i++ {
				got := c.Word("pond")
				if got != 1 && got != 2 {
					t.Errorf("Word saw a torn table entry: %d", got)
					return
				}
			}
		}()
	}
	readers.Wait()
	close(stop)
	writers.Wait()
}

func TestWordsTokenization(t *testing.T) {
	words := Words("Check THIS out: https://example.com/x?y=1 so cool!!")
	assert.Equal(t, []string{"check", "this", "out", "so", "cool"}, words)
}

func TestAnalyzeTotalsSeventeenForAHaiku(t *testing.T) {
	c := NewCounter(map[string]int{
		"an": 1, "old": 1, "silent": 2, "pond": 1,
		"a": 1, "frog": 1, "jumps": 1, "into": 2, "the": 1,
		"splash": 1, "silence": 2, "again": 2,
	})
	words, total := c.Analyze("An old silent pond... A frog jumps into the pond, splash! Silence again.")
	assert.Equal(t, 17, total)
	assert.Len(t, words, 13)
}

func TestFormatHaikuBreaksAtBoundaries(t *testing.T) {
	words := []counted{
		{"an", 1}, {"old", 1}, {"silent", 2}, {"pond", 1},
		{"a", 1}, {"frog", 1}, {"jumps", 1}, {"into", 2}, {"the", 1}, {"pond", 1},
		{"splash", 1}, {"silence", 2}, {"again", 2},
	}
	assert.Equal(t, "an old silent pond\na frog jumps into the pond\nsplash silence again",
		FormatHaiku(words))
}

func TestRingEvictsOldest(t *testing.T) {
	r := newRing(3)
	r.add("a")
	r.add("b")
	r.add("c")
	assert.True(t, r.contains("a"))

	r.add("d")
	assert.False(t, r.contains("a"))
	assert.True(t, r.contains("b"))
	assert.True(t, r.contains("d"))
}
