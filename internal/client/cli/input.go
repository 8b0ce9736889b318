package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassword reads from the terminal without echo. Tests replace it.
var readPassword = term.ReadPassword

var errEmptyInput = errors.New("empty input")

// promptLine asks for one line on the command's stdin. The prompt goes to
// stderr so stdout stays clean for piping.
func promptLine(cmd *cobra.Command, label string) (string, error) {
	if _, err := fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label); err != nil {
		return "", err
	}
	return readLine(bufio.NewReader(cmd.InOrStdin()))
}

// readLine returns a trimmed line. A last line without a newline counts.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errEmptyInput
	}
	return line, nil
}

// promptPassword reads a password from the terminal. The caller wipes the
// returned slice.
func promptPassword(cmd *cobra.Command, label string) ([]byte, error) {
	w := cmd.ErrOrStderr()
	if _, err := fmt.Fprintf(w, "%s: ", label); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, fmt.Errorf("password: %w", errEmptyInput)
	}
	return pw, nil
}
