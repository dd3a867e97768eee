package memlayer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPutRemove(t *testing.T) {
	l := New[string]()

	_, ok := l.Get("a")
	assert.False(t, ok)

	l.Put("a", "1")
	v, ok := l.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	l.Remove("a")
	_, ok = l.Get("a")
	assert.False(t, ok)
}

func TestRemoveByPrefix(t *testing.T) {
	l := New[string]()
	l.Put("users$d$1$g$a", "A")
	l.Put("users$d$1$g$b", "B")
	l.Put("users$d$2$g$a", "C")
	l.Put("orders$d$1$g$a", "D")

	l.RemoveByPrefix("users$d$1$g$")

	_, ok := l.Get("users$d$1$g$a")
	assert.False(t, ok)
	_, ok = l.Get("users$d$1$g$b")
	assert.False(t, ok)
	_, ok = l.Get("users$d$2$g$a")
	assert.True(t, ok)
	_, ok = l.Get("orders$d$1$g$a")
	assert.True(t, ok)
}

func TestClearAndSize(t *testing.T) {
	l := New[int]()
	l.Put("a", 1)
	l.Put("b", 2)
	assert.Equal(t, 2, l.Size())

	l.Clear()
	assert.Equal(t, 0, l.Size())
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	l := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			l.Put("k", i)
		}(i)
		go func() {
			defer wg.Done()
			l.Get("k")
		}()
	}
	wg.Wait()
}
