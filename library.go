package sfsynth

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cbegin/sfsynth-go/internal/engine"
	"github.com/cbegin/sfsynth-go/internal/renderer"
	"github.com/cbegin/sfsynth-go/internal/sequencer"
	"github.com/cbegin/sfsynth-go/internal/soundfont"
)

// Library loads banks on demand: a default bank and optionally a directory
// of banks addressed by file name. Each file is loaded once.
type Library struct {
	mu          sync.Mutex
	defaultPath string
	dir         string
	logger      *log.Logger
	banks       map[string]*soundfont.Bank
}

// NewLibrary creates a library. dir may be empty. A nil logger writes to
// stderr.
func NewLibrary(defaultPath, dir string, logger *log.Logger) *Library {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Library{
		defaultPath: defaultPath,
		dir:         dir,
		logger:      logger,
		banks:       make(map[string]*soundfont.Bank),
	}
}

// Add registers an already loaded bank under a module name; "" replaces
// the default bank.
func (l *Library) Add(name string, b *soundfont.Bank) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.banks[l.key(name)] = b
}

func (l *Library) key(name string) string {
	path := l.defaultPath
	if name != "" {
		path = filepath.Join(l.dir, name)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (l *Library) cached(name string) (*soundfont.Bank, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.banks[l.key(name)]
	return b, ok
}

func (l *Library) load(name string) (*soundfont.Bank, error) {
	key := l.key(name)
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.banks[key]; ok {
		return b, nil
	}
	b, err := soundfont.LoadFile(key, soundfont.WithLogger(l.logger))
	if err != nil {
		return nil, err
	}
	l.banks[key] = b
	return b, nil
}

// Default returns the default bank.
func (l *Library) Default() (*soundfont.Bank, error) {
	if b, ok := l.cached(""); ok {
		return b, nil
	}
	if l.defaultPath == "" {
		return nil, fmt.Errorf("no default bank")
	}
	return l.load("")
}

// Bank returns the bank a module name refers to. "" is the default bank,
// other names are files inside the bank directory.
func (l *Library) Bank(name string) (*soundfont.Bank, error) {
	if name == "" {
		return l.Default()
	}
	if b, ok := l.cached(name); ok {
		return b, nil
	}
	if l.dir == "" {
		return nil, fmt.Errorf("module %q: no bank directory", name)
	}
	if !filepath.IsLocal(name) {
		return nil, fmt.Errorf("module %q: not a file name inside the bank directory", name)
	}
	return l.load(name)
}

// Mixer builds one module per name. Names whose bank cannot be loaded are
// logged and fall back to the default module. Modules on the same bank
// share a renderer.
func (l *Library) Mixer(names []string, sampleRate int, params engine.Params) (*sequencer.Mixer, error) {
	mixer := sequencer.NewMixer()
	renderers := map[*soundfont.Bank]*renderer.Renderer{}
	add := func(name string, b *soundfont.Bank) {
		r, ok := renderers[b]
		if !ok {
			r = renderer.New(b, sampleRate)
			renderers[b] = r
		}
		mixer.Add(name, engine.NewWithRenderer(r, params))
	}
	needDefault := len(names) == 0
	for _, name := range names {
		if name == "" {
			needDefault = true
			continue
		}
		b, err := l.Bank(name)
		if err != nil {
			l.logger.Printf("[warning] %v; using the default bank", err)
			needDefault = true
			continue
		}
		add(name, b)
	}
	if needDefault {
		b, err := l.Default()
		if err != nil {
			return nil, err
		}
		add("", b)
	}
	return mixer, nil
}

// BankFiles lists the *.sf2 files in dir, sorted. The extension match
// ignores case.
func BankFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".sf2") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// DirectoryInfo summarizes every file BankFiles lists, keyed by file name.
func DirectoryInfo(dir string) (map[string]soundfont.BankInfo, error) {
	names, err := BankFiles(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]soundfont.BankInfo, len(names))
	for _, name := range names {
		b, err := soundfont.LoadFile(filepath.Join(dir, name), soundfont.Quiet())
		if err != nil {
			return nil, err
		}
		out[name] = b.Summary()
	}
	return out, nil
}
