package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushPopSingleThreadSingleItem(t *testing.T) {
	q := New[int]("test", 0)
	require.Equal(t, 0, q.Len())

	q.Push(1)
	require.Equal(t, 1, q.Len())

	item := q.Pop()
	require.Equal(t, 1, item.Value())
	item.Done(true)

	require.Equal(t, 0, q.InProgress())
	require.Equal(t, 0, q.Len())
}

func TestPushPopSingleThreadMultiItem(t *testing.T) {
	q := New[int]("test", 0)
	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	for i := 0; i < 10; i++ {
		item := q.Pop()
		item.Done(true)
		require.Equal(t, 0, q.InProgress())
	}
	require.Equal(t, 0, q.Len())
}

func TestPushPopTwoThreads(t *testing.T) {
	q := New[int]("test", 0)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			q.Push(i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			item := q.Pop()
			item.Done(true)
		}
	}()
	wg.Wait()

	require.Equal(t, 0, q.InProgress())
	require.Equal(t, 0, q.Len())
}

func TestWaitDrainsMultiConsumer(t *testing.T) {
	q := New[int]("test", 0)
	for i := 0; i < 10000; i++ {
		q.Push(i)
	}

	var wg sync.WaitGroup
	for c := 0; c < 10; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				item := q.Pop()
				item.Done(true)
			}
		}()
	}

	q.Wait()
	wg.Wait()
	require.Equal(t, 0, q.InProgress())
	require.Equal(t, 0, q.Len())
}

func TestMaxLenEnforced(t *testing.T) {
	q := New[int]("test", 2)
	var wgPush sync.WaitGroup
	var wgPop sync.WaitGroup

	wgPush.Add(2)
	for p := 0; p < 2; p++ {
		go func() {
			defer wgPush.Done()
			for i := 0; i < 500; i++ {
				q.Push(0)
				require.LessOrEqual(t, q.Len(), 2)
			}
		}()
	}

	wgPop.Add(1)
	go func() {
		defer wgPop.Done()
		for i := 0; i < 1000; i++ {
			item := q.Pop()
			item.Done(true)
			require.LessOrEqual(t, q.Len(), 2)
		}
	}()

	wgPush.Wait()
	wgPop.Wait()

	require.Equal(t, 0, q.InProgress())
	require.Equal(t, 0, q.Len())
}

func TestDropWithoutSuccessReenqueues(t *testing.T) {
	q := New[string]("test", 0)
	q.Push("a")

	item := q.Pop()
	require.Equal(t, 0, q.Len()-q.InProgress())
	item.Done(false)

	require.Equal(t, 1, q.Len())
	require.Equal(t, 0, q.InProgress())

	item2 := q.Pop()
	require.Equal(t, "a", item2.Value())
	item2.Done(true)
	require.Equal(t, 0, q.Len())
}
