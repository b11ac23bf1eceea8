package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"assistant/pkg/catalog"
	"assistant/pkg/command"
)

const maxFolderNameLen = 20

var (
	addVerbs    = []string{"create", "add", "make", "new"}
	deleteVerbs = []string{"delete", "remove"}
	openVerbs   = []string{"open", "show", "create", "please", "can", "you", "would", "help", "me", "now", "for"}

	folderNoise = []string{"a", "an", "the", "folder", "directory", "dir", "named", "called", "please"}

	simpleNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{2,20}$`)
)

// ErrOutsideRoot is returned for a name that resolves outside the workspace root.
var ErrOutsideRoot = errors.New("path escapes the workspace root")

// resolve joins name onto the root and rejects anything that lands outside it.
func (d *Dispatcher) resolve(name string) (string, error) {
	if name == "" {
		return "", reason("A name is required.")
	}
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, name)
	}
	p := filepath.Join(d.root, filepath.FromSlash(name))
	rel, err := filepath.Rel(d.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, name)
	}
	return p, nil
}

// cleanFolderName strips wake words, verbs, articles, and folder words from text, keeping the
// caller's casing for whatever is left.
func cleanFolderName(text string, verbs, wakeWords []string) string {
	drop := make(map[string]bool, len(verbs)+len(folderNoise)+len(wakeWords))
	for _, w := range verbs {
		drop[w] = true
	}
	for _, w := range folderNoise {
		drop[w] = true
	}
	for _, w := range wakeWords {
		drop[w] = true
	}

	var kept []string
	for _, tok := range nameTokens(text) {
		if !drop[strings.ToLower(tok)] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

func nameTokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-'
	})
}

func (d *Dispatcher) folderText(cmd command.Command) string {
	if name := strings.TrimSpace(cmd.Get(command.KeyName)); name != "" {
		return name
	}
	return cmd.RawInput
}

func (d *Dispatcher) fallbackFolderName() string {
	return fmt.Sprintf("folder_%d", d.now().Unix())
}

func (d *Dispatcher) handleFolderAdd(_ context.Context, cmd command.Command, _ Env) (command.Result, error) {
	name := cleanFolderName(d.folderText(cmd), addVerbs, d.catalog.Current().WakeWords)
	if name == "" {
		name = d.fallbackFolderName()
	}
	p, err := d.resolve(name)
	if err != nil {
		return command.Result{}, err
	}

	if info, err := os.Stat(p); err == nil {
		if !info.IsDir() {
			return command.Result{}, reason(fmt.Sprintf("'%s' exists and is not a folder.", name))
		}
		return command.Reply(cmd.Kind, cmd.RawInput, fmt.Sprintf("Folder '%s' already exists at %s", name, p)), nil
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return command.Result{}, failed(fmt.Sprintf("the folder '%s' could not be created.", name), err)
	}
	d.logger.Info("📁 Created folder %s", p)
	return command.Reply(cmd.Kind, cmd.RawInput, fmt.Sprintf("Folder '%s' created successfully at %s", name, p)), nil
}

func (d *Dispatcher) handleFolderDelete(_ context.Context, cmd command.Command, _ Env) (command.Result, error) {
	name := cleanFolderName(d.folderText(cmd), deleteVerbs, d.catalog.Current().WakeWords)
	if name == "" {
		return command.Result{}, reason("Folder name is required.")
	}
	p, err := d.resolve(name)
	if err != nil {
		return command.Result{}, err
	}
	if p == d.root {
		return command.Result{}, fmt.Errorf("%w: refusing to delete the root", ErrOutsideRoot)
	}

	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return command.Reply(cmd.Kind, cmd.RawInput, fmt.Sprintf("Folder '%s' does not exist at %s", name, p)), nil
	}
	if err := os.RemoveAll(p); err != nil {
		return command.Result{}, failed(fmt.Sprintf("the folder '%s' could not be deleted.", name), err)
	}
	d.logger.Info("🗑️ Deleted folder %s", p)
	return command.Reply(cmd.Kind, cmd.RawInput, fmt.Sprintf("Folder '%s' deleted successfully from %s", name, p)), nil
}

func (d *Dispatcher) handleFolderOpen(ctx context.Context, cmd command.Command, _ Env) (command.Result, error) {
	name, p, err := d.folderTarget(d.catalog.Current(), d.folderText(cmd))
	if err != nil {
		return command.Result{}, err
	}

	if _, err := os.Stat(p); err != nil {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return command.Result{}, failed(fmt.Sprintf("the folder '%s' could not be created.", name), err)
		}
		d.logger.Info("📁 Created folder %s", p)
	}
	if err := d.launch(ctx, catalog.LaunchOpenPath, p); err != nil {
		return command.Result{}, failed(fmt.Sprintf("the folder '%s' could not be opened.", name), err)
	}
	return command.Reply(cmd.Kind, cmd.RawInput, fmt.Sprintf("Folder '%s' opened successfully at %s", name, p)), nil
}

// folderTarget maps spoken text to a folder: a common folder under the home directory, or the
// first plausible word under the root.
func (d *Dispatcher) folderTarget(cat *catalog.Catalog, text string) (name, path string, err error) {
	if n, dir, ok := cat.CommonFolder(strings.ToLower(text)); ok {
		return n, filepath.Join(d.home, filepath.FromSlash(dir)), nil
	}

	drop := make(map[string]bool)
	for _, w := range append(append([]string{}, openVerbs...), folderNoise...) {
		drop[w] = true
	}
	for _, w := range cat.WakeWords {
		drop[w] = true
	}
	for _, tok := range nameTokens(text) {
		if !drop[strings.ToLower(tok)] && simpleNameRe.MatchString(tok) {
			name = tok
			break
		}
	}
	if name == "" {
		name = d.fallbackFolderName()
	}
	if len(name) > maxFolderNameLen {
		name = name[:maxFolderNameLen]
	}
	path, err = d.resolve(name)
	return name, path, err
}
