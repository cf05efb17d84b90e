package main

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var errNotFound = errors.New("todo not found")

// todoStore owns the in-memory todo mapping. All access goes through the
// mutex; IDs are assigned from a monotonic counter and never reused within
// the process lifetime. Nothing is persisted.
type todoStore struct {
	mu     sync.Mutex
	todos  map[int]todo
	nextID int
}

func newTodoStore() *todoStore {
	return &todoStore{
		todos:  make(map[int]todo),
		nextID: 1,
	}
}

func (s *todoStore) create(title, description string, completed bool) todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	t := todo{
		ID:          s.nextID,
		Title:       title,
		Description: description,
		Completed:   completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextID++
	s.todos[t.ID] = t
	return t
}

func (s *todoStore) get(id int) (todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok {
		return todo{}, errNotFound
	}
	return t, nil
}

// list returns all todos in insertion order. IDs are monotonic, so sorting
// by ID is equivalent.
func (s *todoStore) list() []todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]todo, 0, len(s.todos))
	for _, t := range s.todos {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *todoStore) update(id int, title, description string, completed bool) (todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok {
		return todo{}, errNotFound
	}
	t.Title = title
	t.Description = description
	t.Completed = completed
	now := time.Now().UTC()
	// updated_at must strictly increase even if the clock has not advanced
	// since the previous write.
	if !now.After(t.UpdatedAt) {
		now = t.UpdatedAt.Add(time.Nanosecond)
	}
	t.UpdatedAt = now
	s.todos[id] = t
	return t, nil
}

func (s *todoStore) delete(id int) (todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok {
		return todo{}, errNotFound
	}
	delete(s.todos, id)
	return t, nil
}
