package queue

import (
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func ids(items []testItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Push(t *testing.T) {
	q := New[testItem]()

	q.Push(testItem{ID: 1, Name: "first"})
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	q.Push(testItem{ID: 2}, testItem{ID: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_Pop(t *testing.T) {
	q := New[testItem]()

	if _, ok := q.Pop(); ok {
		t.Error("expected ok=false on empty queue")
	}

	q.Push(testItem{ID: 1, Name: "first"}, testItem{ID: 2, Name: "second"})
	first, ok := q.Pop()
	if !ok || first.ID != 1 || first.Name != "first" {
		t.Errorf("expected {1, first}, got %+v (ok=%v)", first, ok)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
}

func TestQueue_Take(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3}, testItem{ID: 4})

	got := q.Take(3)
	if !equalInts(ids(got), []int{1, 2, 3}) {
		t.Errorf("Take(3) = %v", ids(got))
	}
	if q.Len() != 1 {
		t.Errorf("expected 1 left, got %d", q.Len())
	}

	got = q.Take(10)
	if !equalInts(ids(got), []int{4}) {
		t.Errorf("Take(10) = %v", ids(got))
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
}

func TestQueue_TakeAll(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	result := q.Take(0)
	if !equalInts(ids(result), []int{1, 2, 3}) {
		t.Errorf("unexpected items: %+v", result)
	}
	if !q.Empty() {
		t.Error("expected empty queue after Take(0)")
	}

	// the returned slice must not alias the queue's new storage
	q.Push(testItem{ID: 9})
	if result[0].ID != 1 {
		t.Errorf("taken batch was overwritten: %+v", result)
	}
}

func TestQueue_Requeue(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	batch := q.Take(2)
	q.Push(testItem{ID: 4})
	q.Requeue(batch...)

	if got := ids(q.Take(0)); !equalInts(got, []int{1, 2, 3, 4}) {
		t.Errorf("expected original order restored, got %v", got)
	}

	q.Requeue()
	if !q.Empty() {
		t.Error("Requeue with no items should be a no-op")
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[testItem]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(testItem{ID: id})
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Pop()
		}()
	}
	wg.Wait()

	if q.Len() != 50 {
		t.Errorf("expected 50 items after pops, got %d", q.Len())
	}
}

func TestQueue_ConcurrentTake(t *testing.T) {
	q := New[testItem]()
	for i := 0; i < 100; i++ {
		q.Push(testItem{ID: i})
	}

	var wg sync.WaitGroup
	results := make(chan []testItem, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.Take(7)
		}()
	}
	wg.Wait()
	close(results)

	total := 0
	for r := range results {
		total += len(r)
	}
	if total != 70 {
		t.Errorf("expected total 70 items, got %d", total)
	}
	if q.Len() != 30 {
		t.Errorf("expected 30 left, got %d", q.Len())
	}
}

func TestQueue_StringType(t *testing.T) {
	q := New[string]()
	q.Push("hello", "world")

	first, _ := q.Pop()
	if first != "hello" {
		t.Errorf("expected 'hello', got '%s'", first)
	}
}
