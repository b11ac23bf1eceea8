// Package catalog holds the static phrase shortcuts and allow-listed actions as data.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"assistant/pkg/command"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Launch template names.
const (
	LaunchOpenURL  = "open_url"
	LaunchOpenPath = "open_path"
	LaunchStart    = "start"
	LaunchKill     = "kill"
)

const targetPlaceholder = "{target}"

// Shortcut maps fixed phrases to a locally resolved command.
type Shortcut struct {
	Names    []string     `yaml:"names"`   // matched after an open/start/launch/run verb
	Phrases  []string     `yaml:"phrases"` // matched against the whole normalized text
	Kind     command.Kind `yaml:"kind"`
	App      string       `yaml:"app"`
	Response string       `yaml:"response"`
}

// WindowsAction is one allow-listed OS control. The first entry whose Match phrase is
// contained in the command wins.
type WindowsAction struct {
	Match    []string `yaml:"match"`
	Command  string   `yaml:"command"`
	Response string   `yaml:"response"`
}

// Replies holds fixed texts for control phrases.
type Replies struct {
	Stop        string `yaml:"stop"`
	Pause       string `yaml:"pause"`
	Resume      string `yaml:"resume"`
	AirplaneOn  string `yaml:"airplane_on"`
	AirplaneOff string `yaml:"airplane_off"`
}

// Catalog is an immutable snapshot of the phrase and action tables.
type Catalog struct {
	WakeWords      []string                     `yaml:"wake_words"`
	Replies        Replies                      `yaml:"replies"`
	Shortcuts      []Shortcut                   `yaml:"shortcuts"`
	WebApps        map[string]string            `yaml:"web_apps"`
	WindowsApps    map[string]string            `yaml:"windows_apps"`
	CloseApps      map[string]string            `yaml:"close_apps"`
	BrowserApps    []string                     `yaml:"browser_apps"`
	Browsers       []string                     `yaml:"browsers"`
	WindowsActions []WindowsAction              `yaml:"windows_actions"`
	CommonFolders  map[string]string            `yaml:"common_folders"`
	Languages      map[string]string            `yaml:"languages"`
	Launch         map[string]map[string]string `yaml:"launch"`

	byName   map[string]*Shortcut
	byPhrase map[string]*Shortcut
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile reads and parses the catalog at path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the embedded catalog. It panics if the embedded document is invalid.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

func (c *Catalog) index() error {
	c.byName = make(map[string]*Shortcut)
	c.byPhrase = make(map[string]*Shortcut)

	for i := range c.Shortcuts {
		s := &c.Shortcuts[i]
		if !s.Kind.Valid() {
			return fmt.Errorf("shortcut %v: unknown kind %q", s.Names, s.Kind)
		}
		if s.Response == "" {
			return fmt.Errorf("shortcut %v: missing response", s.Names)
		}
		for _, n := range s.Names {
			key := normalizeKey(n)
			if _, dup := c.byName[key]; dup {
				return fmt.Errorf("duplicate shortcut name %q", n)
			}
			c.byName[key] = s
		}
		for _, p := range s.Phrases {
			c.byPhrase[normalizeKey(p)] = s
		}
	}
	for i, a := range c.WindowsActions {
		if len(a.Match) == 0 || a.Response == "" {
			return fmt.Errorf("windows action %d: match and response are required", i)
		}
	}

	lowerKeys(c.WebApps)
	lowerKeys(c.WindowsApps)
	lowerKeys(c.CloseApps)
	lowerKeys(c.CommonFolders)
	lowerKeys(c.Languages)
	for i, w := range c.WakeWords {
		c.WakeWords[i] = strings.ToLower(strings.TrimSpace(w))
	}
	return nil
}

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func lowerKeys(m map[string]string) {
	for k, v := range m {
		if lk := strings.ToLower(k); lk != k {
			delete(m, k)
			m[lk] = v
		}
	}
}

// ShortcutByName finds the shortcut for the words following an open verb.
func (c *Catalog) ShortcutByName(name string) (Shortcut, bool) {
	s, ok := c.byName[normalizeKey(name)]
	if !ok {
		return Shortcut{}, false
	}
	return *s, true
}

// ShortcutByPhrase finds a shortcut registered for the whole normalized text.
func (c *Catalog) ShortcutByPhrase(text string) (Shortcut, bool) {
	s, ok := c.byPhrase[normalizeKey(text)]
	if !ok {
		return Shortcut{}, false
	}
	return *s, true
}

// WindowsAction returns the first action one of whose phrases occurs in cmd.
func (c *Catalog) WindowsAction(cmd string) (WindowsAction, bool) {
	for _, a := range c.WindowsActions {
		for _, m := range a.Match {
			if strings.Contains(cmd, m) {
				return a, true
			}
		}
	}
	return WindowsAction{}, false
}

// LanguageCode maps a spoken language name to its ISO code.
func (c *Catalog) LanguageCode(name string) (string, bool) {
	code, ok := c.Languages[normalizeKey(name)]
	return code, ok
}

// LanguageName maps an ISO code back to a language name, picking the alphabetically first name
// when several share a code.
func (c *Catalog) LanguageName(code string) (string, bool) {
	best := ""
	for name, cc := range c.Languages {
		if cc == code && (best == "" || name < best) {
			best = name
		}
	}
	return best, best != ""
}

// IsBrowserApp reports whether closing app means closing the browsers.
func (c *Catalog) IsBrowserApp(app string) bool {
	for _, b := range c.BrowserApps {
		if b == app {
			return true
		}
	}
	return false
}

// CommonFolder returns the home-relative directory for a spoken folder name found in text.
// Longer names are tried first so "downloads" wins over "download".
func (c *Catalog) CommonFolder(text string) (name, dir string, ok bool) {
	names := make([]string, 0, len(c.CommonFolders))
	for n := range c.CommonFolders {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	for _, n := range names {
		if containsWord(text, n) {
			return n, c.CommonFolders[n], true
		}
	}
	return "", "", false
}

func containsWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '\t'
	}) {
		if f == word {
			return true
		}
	}
	return false
}

// LaunchCommand renders the named launch template for the running OS.
func (c *Catalog) LaunchCommand(name, target string) (string, error) {
	return c.LaunchCommandFor(runtime.GOOS, name, target)
}

// LaunchCommandFor renders the named launch template for goos.
func (c *Catalog) LaunchCommandFor(goos, name, target string) (string, error) {
	templates, ok := c.Launch[goos]
	if !ok {
		return "", fmt.Errorf("no launch templates for %s", goos)
	}
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("no %s launch template for %s", name, goos)
	}
	return strings.ReplaceAll(tmpl, targetPlaceholder, target), nil
}

// Store publishes the current catalog snapshot. Readers never lock.
type Store struct {
	current atomic.Pointer[Catalog]
}

// NewStore creates a store serving c.
func NewStore(c *Catalog) *Store {
	s := &Store{}
	s.current.Store(c)
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() *Catalog {
	return s.current.Load()
}

// Swap replaces the active snapshot.
func (s *Store) Swap(c *Catalog) {
	s.current.Store(c)
}
