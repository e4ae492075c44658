package root

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptConfirm asks a yes/no question; anything but y/yes is a no.
func PromptConfirm(in io.Reader, out io.Writer, message string) (bool, error) {
	if in == nil {
		return false, fmt.Errorf("confirm: no input (use --yes)")
	}
	if out != nil {
		if _, err := fmt.Fprintf(out, "%s [y/N]: ", message); err != nil {
			return false, err
		}
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
