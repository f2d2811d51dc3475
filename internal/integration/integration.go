// Package integration provides embedded shell integration snippets
// that pipe dirscan queries into fzf.
package integration

import (
	"bytes"
	_ "embed"
	"fmt"
	"os/exec"
	"path/filepath"
	"text/template"
)

// ZshFzf contains the zsh integration script defining dirscan-pick.
//
//go:embed zsh-fzf.sh
var ZshFzf string

// Render fills in the local zsh path and the command the script invokes.
func Render(command string) (string, error) {
	zsh, err := exec.LookPath("zsh")
	if err != nil {
		return "", fmt.Errorf("locating zsh: %w", err)
	}

	return render(filepath.ToSlash(zsh), command)
}

// render executes the script template for the given interpreter and command.
func render(zsh, command string) (string, error) {
	tmpl, err := template.New("zsh-fzf").Parse(ZshFzf)
	if err != nil {
		return "", fmt.Errorf("parsing script template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any{
		"ZSH":     zsh,
		"Command": command,
	}); err != nil {
		return "", fmt.Errorf("rendering script: %w", err)
	}

	return buf.String(), nil
}
