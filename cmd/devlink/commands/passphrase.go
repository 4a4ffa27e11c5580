package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"devlink/internal/crypto"
)

// readPassphrase reads the store passphrase from path. "-" prompts on the
// terminal with echo disabled, or reads one line from a piped stdin.
func readPassphrase(path string, stdin *os.File, prompt io.Writer) (string, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case path != "-":
		data, err = os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read passphrase file: %w", err)
		}
	case term.IsTerminal(int(stdin.Fd())):
		fmt.Fprint(prompt, "Passphrase: ")
		data, err = term.ReadPassword(int(stdin.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
	default:
		data, err = io.ReadAll(io.LimitReader(stdin, 4096))
		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			data = data[:i+1]
		}
	}
	defer crypto.Wipe(data)

	trimmed := bytes.TrimRight(data, "\r\n")
	if len(trimmed) == 0 {
		return "", errors.New("passphrase is empty")
	}
	return string(trimmed), nil
}
