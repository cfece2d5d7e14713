package agentfwd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/term"
)

// PassphraseFunc returns the passphrase for the encrypted key at path.
type PassphraseFunc func(path string) ([]byte, error)

// TerminalPassphrase prompts on stderr and reads the passphrase from
// the terminal without echo.
func TerminalPassphrase(path string) ([]byte, error) {
	fmt.Fprintf(os.Stderr, "Enter passphrase for %s: ", path)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	return pass, nil
}

// LoadKey reads a private key file for the keyring.  Encrypted keys are
// decrypted with the passphrase from prompt; a nil prompt makes them an
// error.
func LoadKey(path string, prompt PassphraseFunc) (agent.AddedKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return agent.AddedKey{}, fmt.Errorf("reading key: %w", err)
	}

	key, err := ssh.ParseRawPrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if !errors.As(err, &missing) || prompt == nil {
			return agent.AddedKey{}, fmt.Errorf("parsing key %s: %w", path, err)
		}
		pass, perr := prompt(path)
		if perr != nil {
			return agent.AddedKey{}, perr
		}
		key, err = ssh.ParseRawPrivateKeyWithPassphrase(data, pass)
		if err != nil {
			return agent.AddedKey{}, fmt.Errorf("decrypting key %s: %w", path, err)
		}
	}
	return agent.AddedKey{PrivateKey: key, Comment: filepath.Base(path)}, nil
}

// LoadKeys loads every path with LoadKey.
func LoadKeys(paths []string, prompt PassphraseFunc) ([]agent.AddedKey, error) {
	keys := make([]agent.AddedKey, 0, len(paths))
	for _, p := range paths {
		k, err := LoadKey(p, prompt)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// DefaultKeyPaths returns the common key files present in ~/.ssh.
func DefaultKeyPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var out []string
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		p := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}
