package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"assistant/pkg/config"
)

// knownSecrets are the names set-key accepts.
var knownSecrets = []string{
	config.EnvGoogleAPIKey,
	config.EnvOpenAIAPIKey,
	config.EnvAnthropicAPIKey,
	config.EnvOllamaHost,
}

func newSetKeyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-key <NAME>",
		Short: "Store a provider credential in the encrypted secrets file",
		Long: "set-key prompts for a secret value and writes it to .assistant/secrets.json.enc.\n" +
			"The file password comes from " + config.EnvPassword + " or an interactive prompt.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToUpper(strings.TrimSpace(args[0]))
			if !isKnownSecret(name) {
				return fmt.Errorf("unknown secret %s (expected one of %s)", name, strings.Join(knownSecrets, ", "))
			}

			in := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())

			password := os.Getenv(config.EnvPassword)
			if password == "" {
				p, err := in.hidden("🔑 Secrets password: ")
				if err != nil {
					return err
				}
				password = p
			}
			if password == "" {
				return errors.New("a secrets password is required")
			}

			secrets := map[string]string{}
			if config.SecretsFileExists(opts.projectDir) {
				existing, err := config.DecryptSecretsFile(opts.projectDir, password)
				if err != nil {
					return fmt.Errorf("failed to open existing secrets: %w", err)
				}
				secrets = existing
			}

			value, err := in.hidden(fmt.Sprintf("Value for %s: ", name))
			if err != nil {
				return err
			}
			if value == "" {
				return fmt.Errorf("no value entered for %s", name)
			}
			secrets[name] = value

			if err := config.EncryptSecretsFile(opts.projectDir, password, secrets); err != nil {
				return fmt.Errorf("failed to encrypt secrets: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Saved %s (%d secrets stored)\n", name, len(secrets))
			return nil
		},
	}
}

func isKnownSecret(name string) bool {
	for _, k := range knownSecrets {
		if k == name {
			return true
		}
	}
	return false
}

// prompter reads hidden input from a terminal, or plain lines when stdin is piped.
type prompter struct {
	in     io.Reader
	lines  *bufio.Reader
	prompt io.Writer
}

func newPrompter(in io.Reader, prompt io.Writer) *prompter {
	return &prompter{in: in, lines: bufio.NewReader(in), prompt: prompt}
}

func (p *prompter) hidden(label string) (string, error) {
	fmt.Fprint(p.prompt, label)
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := p.lines.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
