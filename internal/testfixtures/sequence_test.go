package testfixtures

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence(t *testing.T) {
	t.Run("counts kinds independently", func(t *testing.T) {
		seq := NewSequence()
		bookings := seq.For("booking")

		assert.Equal(t, "booking-1", bookings())
		assert.Equal(t, "catalog-1", seq.Next("catalog"))
		assert.Equal(t, "booking-2", bookings())
		assert.Equal(t, 2, seq.Issued("booking"))
		assert.Equal(t, 0, seq.Issued("room"))
	})

	t.Run("concurrent callers never share an id", func(t *testing.T) {
		seq := NewSequence()
		next := seq.For("booking")

		var (
			wg   sync.WaitGroup
			seen sync.Map
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, dup := seen.LoadOrStore(next(), true)
				assert.False(t, dup)
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, seq.Issued("booking"))
	})
}
