package circular

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueWraps(t *testing.T) {
	b := CreateBuffer[int](4)
	b.Enqueue(1, 2, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, b.Snapshot())

	b.Enqueue(4, 5)
	assert.Equal(t, []int{2, 3, 4, 5}, b.Snapshot())
	assert.Equal(t, uint64(5), b.Written())
}

func TestEnqueueLongerThanBuffer(t *testing.T) {
	b := CreateBuffer[int](3)
	b.Enqueue(1, 2, 3, 4, 5, 6, 7)
	assert.Equal(t, []int{5, 6, 7}, b.Snapshot())
}

func TestRetrieveSizeMismatch(t *testing.T) {
	b := CreateBuffer[float32](4)
	assert.Error(t, b.Retrieve(make([]float32, 3)))
}

func TestSnapshotIsACopy(t *testing.T) {
	b := CreateBuffer[int](2)
	b.Enqueue(1, 2)
	snap := b.Snapshot()
	snap[0] = 99
	assert.Equal(t, []int{1, 2}, b.Snapshot())
}

func TestReset(t *testing.T) {
	b := CreateBuffer[int](2)
	b.Enqueue(7, 8, 9)
	b.Reset()
	assert.Equal(t, []int{0, 0}, b.Snapshot())
	assert.Zero(t, b.Written())
}

func TestConcurrentAccess(t *testing.T) {
	b := CreateBuffer[int](64)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			b.Enqueue(i, i+1, i+2)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			assert.Len(t, b.Snapshot(), 64)
		}
	}()
	wg.Wait()
	assert.Equal(t, uint64(3000), b.Written())
}
