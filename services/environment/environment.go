package environment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/go-ini/ini"
)

const (
	// DefaultPath is the environment file relative to the project root.
	DefaultPath = "src/env/environment.cfg"

	encryptedSuffix = ".age"
	facebookSection = "FACEBOOK"
	pageTokenKey    = "FB_PAGE_TOKEN"
)

var (
	// ErrLoad marks an environment file that is missing, unreadable or malformed.
	ErrLoad = errors.New("failed to load environment configuration file")
	// ErrCredentialInvalid marks an empty or rejected chat-platform token.
	ErrCredentialInvalid = errors.New("chat platform credential is invalid")
)

// Environment holds the secrets needed during a deployment.
type Environment struct {
	PageToken string
	// Values keeps every key of the file as SECTION.KEY.
	Values map[string]string
}

// Options configures Load.
type Options struct {
	// Path overrides DefaultPath, relative to the project root.
	Path string
	// AgeIdentity is an AGE-SECRET-KEY-1... identity used when only the
	// encrypted variant of the file exists.
	AgeIdentity string
}

// Load reads the environment file of the project at root. When the plaintext
// file is absent, the .age variant is decrypted with opts.AgeIdentity.
func Load(root string, opts Options) (Environment, error) {
	rel := opts.Path
	if rel == "" {
		rel = DefaultPath
	}
	path := filepath.Join(root, filepath.FromSlash(rel))

	data, err := readSource(path, opts.AgeIdentity)
	if err != nil {
		return Environment{}, err
	}

	file, err := ini.Load(data)
	if err != nil {
		return Environment{}, fmt.Errorf("%w: parse %s: %v", ErrLoad, rel, err)
	}

	env := Environment{Values: map[string]string{}}
	for _, section := range file.Sections() {
		for _, key := range section.Keys() {
			env.Values[section.Name()+"."+key.Name()] = key.String()
		}
	}

	if !file.HasSection(facebookSection) || !file.Section(facebookSection).HasKey(pageTokenKey) {
		return Environment{}, fmt.Errorf("%w: %s has no [%s] %s entry", ErrLoad, rel, facebookSection, pageTokenKey)
	}

	env.PageToken = strings.TrimSpace(file.Section(facebookSection).Key(pageTokenKey).String())
	if env.PageToken == "" {
		return Environment{}, fmt.Errorf("%w: facebook page token hasn't been set, configure %s in %s", ErrCredentialInvalid, pageTokenKey, rel)
	}

	return env, nil
}

func readSource(path, identity string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	sealed, sealedErr := os.ReadFile(path + encryptedSuffix)
	if sealedErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	if strings.TrimSpace(identity) == "" {
		return nil, fmt.Errorf("%w: %s%s is encrypted and no age identity is configured", ErrLoad, filepath.Base(path), encryptedSuffix)
	}
	return decrypt(sealed, identity)
}

func decrypt(ciphertext []byte, identity string) ([]byte, error) {
	parsed, err := age.ParseX25519Identity(strings.TrimSpace(identity))
	if err != nil {
		return nil, fmt.Errorf("%w: parse age identity: %v", ErrLoad, err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt: %v", ErrLoad, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read decrypted environment: %v", ErrLoad, err)
	}
	return plaintext, nil
}
