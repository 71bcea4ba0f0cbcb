package scene

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/coreman2200/ifcviewer/internal/sequence"
)

var (
	ErrModelNotFound   = errors.New("model not found")
	ErrElementNotFound = errors.New("element not found")
)

// ChangeKind names the property a Change touched.
type ChangeKind string

const (
	ChangePosition   ChangeKind = "position"
	ChangeRotation   ChangeKind = "rotation"
	ChangeScale      ChangeKind = "scale"
	ChangeColor      ChangeKind = "color"
	ChangeVisibility ChangeKind = "visibility"
	ChangeReset      ChangeKind = "reset"
	ChangeModel      ChangeKind = "model"
	ChangeDelete     ChangeKind = "delete"
	ChangeRestore    ChangeKind = "restore"
)

// Element is the visual state of one IFC element. An empty Color means the
// element still uses the material it was loaded with.
type Element struct {
	ModelID     int           `json:"modelId"`
	ElementID   int           `json:"elementId"`
	Position    sequence.Vec3 `json:"position"`
	Rotation    sequence.Vec3 `json:"rotation"`
	Scale       sequence.Vec3 `json:"scale"`
	Color       string        `json:"color,omitempty"`
	Opacity     float64       `json:"opacity"`
	Transparent bool          `json:"transparent"`
	Visible     bool          `json:"visible"`
}

func newElement(modelID, elementID int) *Element {
	return &Element{
		ModelID:   modelID,
		ElementID: elementID,
		Scale:     sequence.Vec3{X: 1, Y: 1, Z: 1},
		Opacity:   1,
		Visible:   true,
	}
}

// Model is one loaded IFC file.
type Model struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	declared map[int]bool
	elements map[int]*Element
	deleted  map[int]bool
}

// Change is published after every mutation. Element is nil for model-level
// changes.
type Change struct {
	Kind    ChangeKind `json:"kind"`
	ModelID int        `json:"modelId"`
	Element *Element   `json:"element,omitempty"`
	Removed bool       `json:"removed,omitempty"`
}

// Scene is the authoritative element state shared by every viewer. It
// implements sequence.Scene.
type Scene struct {
	mu        sync.RWMutex
	models    map[int]*Model
	current   *int
	nextID    int
	listeners []func(Change)
}

var _ sequence.Scene = (*Scene)(nil)

func New() *Scene {
	return &Scene{models: map[int]*Model{}}
}

// Subscribe registers fn for every Change. Listeners run synchronously after
// the scene lock is released.
func (s *Scene) Subscribe(fn func(Change)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// AddModel registers a model and makes it current. When elementIDs is
// non-empty, mutations of other elements fail with ErrElementNotFound.
func (s *Scene) AddModel(name string, elementIDs []int) int {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	m := &Model{ID: id, Name: name, elements: map[int]*Element{}, deleted: map[int]bool{}}
	if len(elementIDs) > 0 {
		m.declared = make(map[int]bool, len(elementIDs))
		for _, e := range elementIDs {
			m.declared[e] = true
		}
	}
	s.models[id] = m
	s.current = &id
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeModel, ModelID: id})
	return id
}

// RemoveModel drops a model. The current model falls back to the highest
// remaining id.
func (s *Scene) RemoveModel(id int) error {
	s.mu.Lock()
	if _, ok := s.models[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrModelNotFound, id)
	}
	delete(s.models, id)
	if s.current != nil && *s.current == id {
		s.current = nil
		for mid := range s.models {
			if s.current == nil || mid > *s.current {
				m := mid
				s.current = &m
			}
		}
	}
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeModel, ModelID: id, Removed: true})
	return nil
}

// Clear removes every model, as happens when a new IFC file replaces the
// old one. Model ids restart at 0 like the IFC loader's.
func (s *Scene) Clear() {
	s.mu.Lock()
	ids := make([]int, 0, len(s.models))
	for id := range s.models {
		ids = append(ids, id)
	}
	s.models = map[int]*Model{}
	s.current = nil
	s.nextID = 0
	s.mu.Unlock()

	sort.Ints(ids)
	for _, id := range ids {
		s.publish(Change{Kind: ChangeModel, ModelID: id, Removed: true})
	}
}

func (s *Scene) CurrentModelID() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return 0, false
	}
	return *s.current, true
}

// Models lists loaded models ordered by id.
func (s *Scene) Models() []Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Model, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, Model{ID: m.ID, Name: m.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Element returns a copy of an element's state.
func (s *Scene) Element(modelID, elementID int) (Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[modelID]
	if !ok {
		return Element{}, false
	}
	e, ok := m.elements[elementID]
	if !ok {
		return Element{}, false
	}
	return *e, true
}

// Snapshot returns every touched element ordered by model then element id.
func (s *Scene) Snapshot() []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Element
	for _, m := range s.models {
		for _, e := range m.elements {
			out = append(out, *e)
		}
	}
	sortElements(out)
	return out
}

func (s *Scene) ApplyPosition(modelID, elementID int, x, y, z float64) error {
	return s.mutate(modelID, elementID, ChangePosition, func(_ *Model, e *Element) {
		e.Position = sequence.Vec3{X: x, Y: y, Z: z}
	})
}

func (s *Scene) ApplyRotation(modelID, elementID int, x, y, z float64) error {
	return s.mutate(modelID, elementID, ChangeRotation, func(_ *Model, e *Element) {
		e.Rotation = sequence.Vec3{X: x, Y: y, Z: z}
	})
}

func (s *Scene) ApplyScale(modelID, elementID int, x, y, z float64) error {
	return s.mutate(modelID, elementID, ChangeScale, func(_ *Model, e *Element) {
		e.Scale = sequence.Vec3{X: x, Y: y, Z: z}
	})
}

// ApplyColor sets the element color. A nil opacity means fully opaque.
func (s *Scene) ApplyColor(modelID, elementID int, color string, opacity *float64) error {
	hex, err := ParseColor(color)
	if err != nil {
		return err
	}
	o := 1.0
	if opacity != nil {
		o = clampOpacity(*opacity)
	}
	return s.mutate(modelID, elementID, ChangeColor, func(_ *Model, e *Element) {
		e.Color = hex
		e.Opacity = o
		e.Transparent = o < 1
	})
}

func (s *Scene) SetVisibility(modelID, elementID int, visible bool) error {
	return s.mutate(modelID, elementID, ChangeVisibility, func(_ *Model, e *Element) {
		e.Visible = visible
	})
}

// ResetColor restores the element's loaded material.
func (s *Scene) ResetColor(modelID, elementID int) error {
	return s.mutate(modelID, elementID, ChangeReset, func(_ *Model, e *Element) {
		e.Color = ""
		e.Opacity = 1
		e.Transparent = false
	})
}

// ResetPosition moves the element back to the origin offset.
func (s *Scene) ResetPosition(modelID, elementID int) error {
	return s.mutate(modelID, elementID, ChangeReset, func(_ *Model, e *Element) {
		e.Position = sequence.Vec3{}
	})
}

// ResetAllColors restores the loaded material of every recolored element in
// every model and returns how many were reset.
func (s *Scene) ResetAllColors() int {
	s.mu.Lock()
	var changed []Element
	for _, m := range s.models {
		for _, e := range m.elements {
			if e.Color == "" && e.Opacity == 1 {
				continue
			}
			e.Color = ""
			e.Opacity = 1
			e.Transparent = false
			changed = append(changed, *e)
		}
	}
	s.mu.Unlock()

	sortElements(changed)
	for i := range changed {
		s.publish(Change{Kind: ChangeReset, ModelID: changed[i].ModelID, Element: &changed[i]})
	}
	return len(changed)
}

// Delete hides an element and remembers it for RestoreDeleted.
func (s *Scene) Delete(modelID, elementID int) error {
	return s.mutate(modelID, elementID, ChangeDelete, func(m *Model, e *Element) {
		e.Visible = false
		m.deleted[elementID] = true
	})
}

// Deleted lists the element ids of a model hidden by Delete.
func (s *Scene) Deleted(modelID int) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[modelID]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(m.deleted))
	for id := range m.deleted {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// RestoreDeleted shows every element of the model hidden by Delete and
// returns how many came back.
func (s *Scene) RestoreDeleted(modelID int) (int, error) {
	s.mu.Lock()
	m, ok := s.models[modelID]
	if !ok {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %d", ErrModelNotFound, modelID)
	}
	restored := make([]Element, 0, len(m.deleted))
	for id := range m.deleted {
		e := m.elements[id]
		e.Visible = true
		restored = append(restored, *e)
	}
	m.deleted = map[int]bool{}
	s.mu.Unlock()

	sortElements(restored)
	for i := range restored {
		s.publish(Change{Kind: ChangeRestore, ModelID: modelID, Element: &restored[i]})
	}
	return len(restored), nil
}

func (s *Scene) mutate(modelID, elementID int, kind ChangeKind, f func(m *Model, e *Element)) error {
	s.mu.Lock()
	m, ok := s.models[modelID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrModelNotFound, modelID)
	}
	if m.declared != nil && !m.declared[elementID] {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d in model %d", ErrElementNotFound, elementID, modelID)
	}
	e, ok := m.elements[elementID]
	if !ok {
		e = newElement(modelID, elementID)
		m.elements[elementID] = e
	}
	f(m, e)
	snap := *e
	s.mu.Unlock()

	s.publish(Change{Kind: kind, ModelID: modelID, Element: &snap})
	return nil
}

func sortElements(out []Element) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModelID != out[j].ModelID {
			return out[i].ModelID < out[j].ModelID
		}
		return out[i].ElementID < out[j].ElementID
	})
}

func (s *Scene) publish(c Change) {
	s.mu.RLock()
	ls := append([]func(Change){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range ls {
		fn(c)
	}
}
