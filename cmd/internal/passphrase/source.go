// Package passphrase resolves the module keystore passphrase for gridd and
// gridctl.
package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

var ErrEmpty = errors.New("passphrase: empty passphrase")

// Source reads the passphrase from an environment variable, falling back to
// a terminal prompt. The first result, success or failure, is cached.
type Source struct {
	envVar string
	lookup func(string) (string, bool)
	prompt func() ([]byte, error)

	once  sync.Once
	value string
	err   error
}

func NewSource(envVar string) *Source {
	return &Source{
		envVar: strings.TrimSpace(envVar),
		lookup: os.LookupEnv,
		prompt: promptTerminal,
	}
}

func (s *Source) Get() (string, error) {
	s.once.Do(func() { s.value, s.err = s.resolve() })
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := s.lookup(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%w: %s is set but blank", ErrEmpty, s.envVar)
			}
			return value, nil
		}
	}
	raw, err := s.prompt()
	if err != nil {
		if s.envVar != "" {
			return "", fmt.Errorf("set %s or run interactively: %w", s.envVar, err)
		}
		return "", err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", ErrEmpty
	}
	return string(raw), nil
}

func promptTerminal() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("passphrase: no terminal available")
	}
	fmt.Fprint(os.Stderr, "Module keystore passphrase: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("passphrase: read terminal: %w", err)
	}
	return raw, nil
}
