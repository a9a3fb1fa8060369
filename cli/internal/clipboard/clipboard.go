// Package clipboard copies text to the system clipboard via whichever
// platform utility is installed.
package clipboard

import (
	"errors"
	"os/exec"
	"strings"
)

// ErrUnavailable indicates no clipboard utility was found on PATH.
var ErrUnavailable = errors.New("no clipboard command found; install pbcopy, wl-copy, xclip, or xsel")

var candidates = []struct {
	name string
	args []string
}{
	{name: "pbcopy"},
	{name: "wl-copy"},
	{name: "xclip", args: []string{"-selection", "clipboard"}},
	{name: "xsel", args: []string{"--clipboard", "--input"}},
}

// Copy writes text to the clipboard using the first available utility.
func Copy(text string) error {
	for _, c := range candidates {
		if _, err := exec.LookPath(c.name); err != nil {
			continue
		}
		cmd := exec.Command(c.name, c.args...)
		cmd.Stdin = strings.NewReader(text)
		return cmd.Run()
	}
	return ErrUnavailable
}
