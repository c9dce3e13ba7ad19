package credential

import (
	"os"
	"path/filepath"
)

// defaultKeyNames lists conventional private key filenames in preference
// order. The first one that exists wins.
var defaultKeyNames = []string{"id_ed25519", "id_rsa", "id_ecdsa", "id_dsa"}

// DefaultSSHDir returns the user's conventional SSH directory (~/.ssh).
func DefaultSSHDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ssh"), nil
}

// DiscoverSSHKeys returns the private keys found under sshDir, in
// preference order. Only the conventional default key names are considered;
// an empty slice means no usable key exists.
func DiscoverSSHKeys(sshDir string) []string {
	var keys []string
	for _, name := range defaultKeyNames {
		path := filepath.Join(sshDir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		keys = append(keys, path)
	}
	return keys
}
