package queue

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// MemoryStore is an in-process Store for tests and single-node runs.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
	lists  map[string][]string
	sets   map[string]map[string]struct{}
	zsets  map[string]map[string]float64
	hashes map[string]map[string]int64
	err    error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string][]byte),
		lists:  make(map[string][]string),
		sets:   make(map[string]map[string]struct{}),
		zsets:  make(map[string]map[string]float64),
		hashes: make(map[string]map[string]int64),
	}
}

// SetError makes every subsequent call fail with err until cleared with nil.
func (s *MemoryStore) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, false, s.err
	}
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	var n int64
	for _, key := range keys {
		if s.deleteKey(key) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) deleteKey(key string) bool {
	found := false
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		found = true
	}
	if _, ok := s.lists[key]; ok {
		delete(s.lists, key)
		found = true
	}
	if _, ok := s.sets[key]; ok {
		delete(s.sets, key)
		found = true
	}
	if _, ok := s.zsets[key]; ok {
		delete(s.zsets, key)
		found = true
	}
	if _, ok := s.hashes[key]; ok {
		delete(s.hashes, key)
		found = true
	}
	return found
}

func (s *MemoryStore) LPush(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.lists[key] = append([]string{value}, s.lists[key]...)
	return nil
}

func (s *MemoryStore) LLen(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return int64(len(s.lists[key])), nil
}

func (s *MemoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	list := s.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return []string{}, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (s *MemoryStore) PopToSet(_ context.Context, list, set string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", false, s.err
	}
	items := s.lists[list]
	if len(items) == 0 {
		return "", false, nil
	}
	member := items[len(items)-1]
	if len(items) == 1 {
		delete(s.lists, list)
	} else {
		s.lists[list] = items[:len(items)-1]
	}
	if s.sets[set] == nil {
		s.sets[set] = make(map[string]struct{})
	}
	s.sets[set][member] = struct{}{}
	return member, true, nil
}

func (s *MemoryStore) SRem(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	set := s.sets[key]
	if _, ok := set[member]; !ok {
		return false, nil
	}
	delete(set, member)
	if len(set) == 0 {
		delete(s.sets, key)
	}
	return true, nil
}

func (s *MemoryStore) SCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return int64(len(s.sets[key])), nil
}

func (s *MemoryStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.zsets[key] == nil {
		s.zsets[key] = make(map[string]float64)
	}
	s.zsets[key][member] = score
	return nil
}

func (s *MemoryStore) ZRem(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	return s.zrem(key, member), nil
}

func (s *MemoryStore) zrem(key, member string) bool {
	zset := s.zsets[key]
	if _, ok := zset[member]; !ok {
		return false
	}
	delete(zset, member)
	if len(zset) == 0 {
		delete(s.zsets, key)
	}
	return true
}

func (s *MemoryStore) ZCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return int64(len(s.zsets[key])), nil
}

func (s *MemoryStore) ZRangeByScore(_ context.Context, key string, max float64, limit int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	type entry struct {
		member string
		score  float64
	}
	var due []entry
	for member, score := range s.zsets[key] {
		if score <= max {
			due = append(due, entry{member: member, score: score})
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].score == due[j].score {
			return due[i].member < due[j].member
		}
		return due[i].score < due[j].score
	})
	if limit > 0 && int64(len(due)) > limit {
		due = due[:limit]
	}
	out := make([]string, 0, len(due))
	for _, e := range due {
		out = append(out, e.member)
	}
	return out, nil
}

func (s *MemoryStore) MoveZToList(_ context.Context, zset, member, list string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if !s.zrem(zset, member) {
		return false, nil
	}
	s.lists[list] = append([]string{member}, s.lists[list]...)
	return true, nil
}

func (s *MemoryStore) HIncrBy(_ context.Context, key, field string, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.hashes[key] == nil {
		s.hashes[key] = make(map[string]int64)
	}
	s.hashes[key][field] += n
	return nil
}

func (s *MemoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]string, len(s.hashes[key]))
	for field, v := range s.hashes[key] {
		out[field] = strconv.FormatInt(v, 10)
	}
	return out, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
