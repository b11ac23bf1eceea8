package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"assistant/pkg/command"
	"assistant/pkg/intent"
)

// reason is a failure message shown to the caller as written.
type reason string

func (r reason) Error() string { return string(r) }

const allCode = "all code"

var (
	authKeywords   = []string{"login", "auth", "password", "signin"}
	filterFillers  = map[string]bool{"the": true, "part": true, "logic": true, "code": true, "section": true, "function": true, "only": true}
	pythonMain     = "print('Hello World')\n"
	pythonRequires = "flask\n"
	javaMain       = "public class Main { public static void main(String[] args) { System.out.println(\"Hello World\"); } }\n"
)

func (d *Dispatcher) handleFileOperation(_ context.Context, cmd command.Command, _ Env) (command.Result, error) {
	src := cmd.Get(command.KeySource)
	dst := cmd.Get(command.KeyDest)
	filter := cmd.Get(command.KeyFilter)
	if src == "" || dst == "" {
		var ok bool
		src, dst, filter, ok = intent.ParseFileOperation(cmd.RawInput)
		if !ok {
			return command.Result{}, reason("I couldn't understand the copy-paste operation. Please specify source and destination files.")
		}
	}
	src = strings.Trim(src, `'"`)
	dst = strings.Trim(dst, `'"`)

	srcPath, err := d.resolve(src)
	if err != nil {
		return command.Result{}, err
	}
	dstPath, err := d.resolve(dst)
	if err != nil {
		return command.Result{}, err
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return command.Result{}, reason(fmt.Sprintf("Source file '%s' not found.", src))
		}
		return command.Result{}, failed(fmt.Sprintf("'%s' could not be read.", src), err)
	}

	what := allCode
	content := string(data)
	if filter != "" && filter != allCode {
		what = filter
		content = filterLines(content, filterKeywords(filter))
	}

	var existing []byte
	if prev, err := os.ReadFile(dstPath); err == nil {
		existing = prev
	} else if !os.IsNotExist(err) {
		return command.Result{}, failed(fmt.Sprintf("'%s' could not be read.", dst), err)
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return command.Result{}, failed(fmt.Sprintf("'%s' could not be written.", dst), err)
	}
	out := string(existing) + "\n\n// Copied from " + src + "\n" + content
	if err := os.WriteFile(dstPath, []byte(out), 0o644); err != nil {
		return command.Result{}, failed(fmt.Sprintf("'%s' could not be written.", dst), err)
	}

	d.logger.Info("📋 Copied %s from %s to %s", what, srcPath, dstPath)
	return command.Reply(cmd.Kind, cmd.RawInput,
		fmt.Sprintf("Successfully copied %s from '%s' to '%s'.", what, src, dst)), nil
}

// filterKeywords turns "login part" into the words a line must contain one of.
func filterKeywords(filter string) []string {
	lower := strings.ToLower(filter)
	if strings.Contains(lower, "login") || strings.Contains(lower, "auth") {
		return authKeywords
	}
	var words []string
	for _, w := range strings.Fields(lower) {
		if !filterFillers[w] {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return []string{lower}
	}
	return words
}

func filterLines(content string, keywords []string) string {
	var kept []string
	for _, line := range strings.Split(content, "\n") {
		lower := strings.ToLower(line)
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				kept = append(kept, line)
				break
			}
		}
	}
	return strings.Join(kept, "\n")
}

type projectFile struct {
	name    string
	content string
}

func (d *Dispatcher) handleProjectCreate(_ context.Context, cmd command.Command, _ Env) (command.Result, error) {
	lang := strings.ToLower(cmd.Get(command.KeyLanguage))
	if lang == "" {
		if strings.Contains(strings.ToLower(cmd.RawInput), "java") {
			lang = "java"
		} else {
			lang = "python"
		}
	}

	var dir, title, done string
	var files []projectFile
	switch lang {
	case "python":
		dir, title = "python_project", "Python"
		files = []projectFile{{"main.py", pythonMain}, {"requirements.txt", pythonRequires}}
		done = "Python project created successfully with main.py and requirements.txt."
	case "java":
		dir, title = "java_project", "Java"
		files = []projectFile{{"Main.java", javaMain}}
		done = "Java project created successfully with Main.java."
	default:
		return command.Result{}, reason(fmt.Sprintf("I can only scaffold Python or Java projects, not '%s'.", lang))
	}

	p, err := d.resolve(dir)
	if err != nil {
		return command.Result{}, err
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return command.Result{}, failed(fmt.Sprintf("the %s project could not be created.", title), err)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(p, f.name), []byte(f.content), 0o644); err != nil {
			return command.Result{}, failed(fmt.Sprintf("the %s project could not be created.", title), err)
		}
	}

	d.logger.Info("🛠️ Scaffolded %s project at %s", title, p)
	return command.Reply(cmd.Kind, cmd.RawInput, fmt.Sprintf("Creating %s project for you. %s", title, done)), nil
}
