package sequencer

import (
	"sort"
	"sync"

	"github.com/cbegin/sfsynth-go/internal/engine"
)

// Module is a synthesizer driven by channel messages. *engine.Module
// implements it.
type Module interface {
	Handle(msg engine.Message) error
	Process(dst []float32) error
	Silent() bool
}

var _ Module = (*engine.Module)(nil)

// Mixer routes messages to named modules and sums their output.
type Mixer struct {
	mu      sync.Mutex
	modules map[string]Module
	names   []string
	buf     []float32
}

func NewMixer() *Mixer {
	return &Mixer{modules: make(map[string]Module)}
}

// Add registers mod under name, replacing any module of the same name.
func (m *Mixer) Add(name string, mod Module) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.modules[name]; !ok {
		m.names = append(m.names, name)
		sort.Strings(m.names)
	}
	m.modules[name] = mod
}

// Names returns the registered module names in sorted order.
func (m *Mixer) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...)
}

func (m *Mixer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.names)
}

// Module resolves name. Unknown names use the default module "", or the
// first module by name when there is no default.
func (m *Mixer) Module(name string) Module {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(name)
}

func (m *Mixer) lookup(name string) Module {
	if mod, ok := m.modules[name]; ok {
		return mod
	}
	if mod, ok := m.modules[""]; ok {
		return mod
	}
	if len(m.names) > 0 {
		return m.modules[m.names[0]]
	}
	return nil
}

// Handle sends msg to the module resolved from name.
func (m *Mixer) Handle(name string, msg engine.Message) error {
	mod := m.Module(name)
	if mod == nil {
		return nil
	}
	return mod.Handle(msg)
}

// Process renders every module and sums them in name order.
func (m *Mixer) Process(dst []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(dst)
	if cap(m.buf) < len(dst) {
		m.buf = make([]float32, len(dst))
	}
	buf := m.buf[:len(dst)]
	for _, name := range m.names {
		if err := m.modules[name].Process(buf); err != nil {
			return err
		}
		for i, v := range buf {
			dst[i] += v
		}
	}
	return nil
}

// Silent reports whether every module is silent.
func (m *Mixer) Silent() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mod := range m.modules {
		if !mod.Silent() {
			return false
		}
	}
	return true
}
