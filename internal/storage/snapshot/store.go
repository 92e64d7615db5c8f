// Package snapshot реализует потокобезопасное хранилище сущностей в памяти
// с атомарной выдачей идентификаторов и полной записью снимка в JSON файл
// после каждой мутации.
//
// Снимок загружается при Open. Если файла нет, создается пустой. Счетчик
// идентификаторов стартует с максимального id из снимка, поэтому новые
// идентификаторы никогда не пересекаются с восстановленными данными.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/magabrotheeeer/subman/internal/lib/metrics"
	"github.com/magabrotheeeer/subman/internal/lib/sl"
)

var (
	// ErrPersistence — ошибка чтения или записи снимка.
	ErrPersistence = errors.New("snapshot persistence failure")
	// ErrConflict — сохраняемое значение нарушает ограничение уникальности.
	ErrConflict = errors.New("unique constraint violation")
	// ErrNotFound — обновляемой сущности нет в хранилище.
	ErrNotFound = errors.New("entity not found")
)

// Entity — значение, которое хранилище умеет копировать.
// Наружу всегда отдаются копии, ссылки на внутреннее состояние не утекают.
type Entity[T any] interface {
	Clone() T
}

// IDFunc возвращает указатель на поле идентификатора сущности.
type IDFunc[T any] func(*T) *int64

type options struct {
	metrics *metrics.Store
	log     *slog.Logger
}

// Option настраивает Store.
type Option func(*options)

// WithMetrics включает метрики записи снимков.
func WithMetrics(m *metrics.Store) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger задает логгер хранилища.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// Store — хранилище сущностей одного типа, владеющее картой и счетчиком id.
type Store[T Entity[T]] struct {
	name string
	path string
	id   IDFunc[T]

	mu    sync.RWMutex
	items map[int64]T
	seq   atomic.Int64

	// snapMu сериализует запись файла, читатели карты его не ждут.
	snapMu sync.Mutex

	metrics *metrics.Store
	log     *slog.Logger
}

// Open загружает снимок из path или создает пустой файл, если его нет.
func Open[T Entity[T]](name, path string, id IDFunc[T], opts ...Option) (*Store[T], error) {
	const op = "snapshot.Open"

	o := options{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store[T]{
		name:    name,
		path:    path,
		id:      id,
		items:   make(map[int64]T),
		metrics: o.metrics,
		log:     o.log.With(slog.String("store", name)),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
		}
		if err := s.persist(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("created empty snapshot", slog.String("path", path))
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
	}

	var records []T
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%s: %w: decode %s: %w", op, ErrPersistence, path, err)
		}
	}

	var maxID int64
	for i := range records {
		rid := *s.id(&records[i])
		if rid <= 0 {
			return nil, fmt.Errorf("%s: %w: record %d in %s has no id", op, ErrPersistence, i, path)
		}
		s.items[rid] = records[i]
		maxID = max(maxID, rid)
	}
	s.seq.Store(maxID)

	s.log.Info("snapshot loaded", slog.String("path", path), slog.Int("entities", len(s.items)))
	return s, nil
}

// FindAll возвращает копии всех сущностей в порядке возрастания id.
func (s *Store[T]) FindAll() []T {
	return s.Find(nil)
}

// FindByID возвращает копию сущности по id.
func (s *Store[T]) FindByID(id int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return v.Clone(), true
}

// Find возвращает копии сущностей, для которых match вернул true, в порядке возрастания id.
// nil match отбирает все сущности.
func (s *Store[T]) Find(match func(T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.items))
	for _, id := range s.sortedIDs() {
		v := s.items[id]
		if match == nil || match(v) {
			out = append(out, v.Clone())
		}
	}
	return out
}

// First возвращает первую по id сущность, удовлетворяющую match.
func (s *Store[T]) First(match func(T) bool) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.sortedIDs() {
		if v := s.items[id]; match(v) {
			return v.Clone(), true
		}
	}
	var zero T
	return zero, false
}

// Len возвращает число сущностей.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Save вставляет или обновляет сущность. Нулевой id заменяется следующим
// значением счетчика, иначе выполняется upsert по id.
func (s *Store[T]) Save(v T) (T, error) {
	return s.save(v, nil)
}

// SaveUnique работает как Save, но атомарно отказывает с ErrConflict, если
// conflicts вернул true для какой-либо другой сохраненной сущности.
func (s *Store[T]) SaveUnique(v T, conflicts func(existing T) bool) (T, error) {
	return s.save(v, conflicts)
}

func (s *Store[T]) save(v T, conflicts func(T) bool) (T, error) {
	const op = "snapshot.Save"
	var zero T

	v = v.Clone()
	idp := s.id(&v)

	s.mu.Lock()
	if conflicts != nil {
		for id, existing := range s.items {
			if id != *idp && conflicts(existing) {
				s.mu.Unlock()
				return zero, fmt.Errorf("%s: %w", op, ErrConflict)
			}
		}
	}
	if *idp <= 0 {
		*idp = s.seq.Add(1)
	} else {
		s.bump(*idp)
	}
	s.items[*idp] = v
	saved := v.Clone()
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return saved, nil
}

// Update атомарно изменяет существующую сущность: чтение, change и запись
// выполняются под одной блокировкой карты, поэтому параллельные изменения
// одной сущности не теряются. Ошибка change отменяет изменение и
// возвращается обернутой. Идентификатор изменить нельзя.
//
// change вызывается под блокировкой и не должен обращаться к этому же Store.
func (s *Store[T]) Update(id int64, change func(*T) error) (T, error) {
	return s.update(id, change, nil)
}

// UpdateUnique работает как Update и дополнительно отказывает с ErrConflict,
// если conflicts вернул true для измененного значения и какой-либо другой сущности.
func (s *Store[T]) UpdateUnique(id int64, change func(*T) error, conflicts func(updated, existing T) bool) (T, error) {
	return s.update(id, change, conflicts)
}

func (s *Store[T]) update(id int64, change func(*T) error, conflicts func(updated, existing T) bool) (T, error) {
	const op = "snapshot.Update"
	var zero T

	s.mu.Lock()
	current, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return zero, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	next := current.Clone()
	if err := change(&next); err != nil {
		s.mu.Unlock()
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	*s.id(&next) = id

	if conflicts != nil {
		for other, existing := range s.items {
			if other != id && conflicts(next, existing) {
				s.mu.Unlock()
				return zero, fmt.Errorf("%s: %w", op, ErrConflict)
			}
		}
	}
	s.items[id] = next
	saved := next.Clone()
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return saved, nil
}

// DeleteByID удаляет сущность, если она есть, и записывает снимок.
func (s *Store[T]) DeleteByID(id int64) error {
	const op = "snapshot.DeleteByID"

	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Flush принудительно записывает снимок. Вызывается при остановке процесса.
func (s *Store[T]) Flush() error {
	const op = "snapshot.Flush"
	if err := s.persist(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// bump поднимает счетчик до id, если явный id его обогнал.
func (s *Store[T]) bump(id int64) {
	for {
		cur := s.seq.Load()
		if id <= cur || s.seq.CompareAndSwap(cur, id) {
			return
		}
	}
}

// sortedIDs вызывается под s.mu.
func (s *Store[T]) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// persist копирует состояние под snapMu, поэтому последняя запись всегда
// включает все мутации, завершившиеся до нее.
func (s *Store[T]) persist() error {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	start := time.Now()

	s.mu.RLock()
	records := make([]T, 0, len(s.items))
	for _, id := range s.sortedIDs() {
		records = append(records, s.items[id])
	}
	s.mu.RUnlock()

	err := s.writeFile(records)
	s.metrics.ObserveWrite(s.name, len(records), time.Since(start), err)
	if err != nil {
		s.log.Error("failed to write snapshot", slog.String("path", s.path), sl.Err(err))
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.log.Debug("snapshot written", slog.Int("entities", len(records)))
	return nil
}

func (s *Store[T]) writeFile(records []T) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
