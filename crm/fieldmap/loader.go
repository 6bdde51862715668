package fieldmap

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
)

//go:embed mappings/*.yaml
var embedded embed.FS

// Loader reads "<system>.yaml" files from a filesystem and caches the parsed
// mapping per system for the life of the loader.
type Loader struct {
	fsys fs.FS

	mu    sync.Mutex
	cache map[string]*Mapping
}

func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys, cache: make(map[string]*Mapping)}
}

// NewDirLoader loads mappings from dir on disk.
func NewDirLoader(dir string) *Loader {
	return NewLoader(os.DirFS(dir))
}

// EmbeddedLoader loads the mappings compiled into the binary.
func EmbeddedLoader() *Loader {
	sub, err := fs.Sub(embedded, "mappings")
	if err != nil {
		panic(err)
	}
	return NewLoader(sub)
}

var defaultLoader = sync.OnceValue(EmbeddedLoader)

// Load reads the embedded mapping for system.
func Load(system string) (*Mapping, error) {
	return defaultLoader().Load(system)
}

// Load returns the mapping for system. Repeated calls return the same
// instance.
func (l *Loader) Load(system string) (*Mapping, error) {
	system = strings.ToLower(strings.TrimSpace(system))
	if system == "" {
		return nil, fmt.Errorf("%w: crm system is empty", contractx.ErrConfig)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.cache[system]; ok {
		return m, nil
	}

	file := system + ".yaml"
	raw, err := fs.ReadFile(l.fsys, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no field mapping for %q (available: %s)",
				contractx.ErrConfig, system, strings.Join(l.available(), ", "))
		}
		return nil, fmt.Errorf("%w: read %s: %v", contractx.ErrConfig, file, err)
	}

	m, err := parseMapping(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contractx.ErrConfig, file, err)
	}

	log.Debug().
		Str("system", system).
		Str("version", m.Version()).
		Int("entities", len(m.entities)).
		Msg("field mapping loaded")

	l.cache[system] = m
	return m, nil
}

// MustLoad is Load that panics, for process start-up.
func (l *Loader) MustLoad(system string) *Mapping {
	m, err := l.Load(system)
	if err != nil {
		panic(err)
	}
	return m
}

// Available lists the systems the loader can read.
func (l *Loader) Available() []string {
	return l.available()
}

func (l *Loader) available() []string {
	matches, err := fs.Glob(l.fsys, "*.yaml")
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSuffix(path.Base(m), ".yaml"))
	}
	sort.Strings(out)
	return out
}
