package steps

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр агентов.
//
// Позволяет регистрировать и получать реализации Step по ID.
// Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]Step),
	}
}

// DefaultRegistry создаёт реестр со всеми стандартными агентами.
func DefaultRegistry(opts Options) *Registry {
	r := NewRegistry()

	r.Register(NewADOConnector())
	r.Register(NewPlanner())
	r.Register(NewMetaRefiner())
	r.Register(NewDBArchitect())
	r.Register(NewBackendCoder())
	r.Register(NewFrontendCoder())
	r.Register(NewLegacyAgent())
	r.Register(NewSentinel(opts.RetryCeiling))
	r.Register(NewDeploymentEngine())

	return r
}

// Register регистрирует шаг в реестре.
// Если шаг с таким ID уже существует, он будет перезаписан.
func (r *Registry) Register(step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[step.ID()] = step
}

// Get возвращает шаг по ID.
// Возвращает ErrStepNotFound, если шаг не найден.
func (r *Registry) Get(id string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, id)
	}

	return step, nil
}

// Has проверяет, зарегистрирован ли шаг.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.steps[id]
	return exists
}

// IDs возвращает отсортированный список ID зарегистрированных шагов.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.steps))
	for id := range r.steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Name возвращает отображаемое имя шага или сам ID, если шаг не найден.
func (r *Registry) Name(id string) string {
	step, err := r.Get(id)
	if err != nil {
		return id
	}
	return step.Name()
}

// Count возвращает количество зарегистрированных шагов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}
