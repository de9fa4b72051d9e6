package config

import (
	"path/filepath"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/laforge-app/laforge/pkg/errors"
)

// CredentialsPath is the default path to the credentials file.
const CredentialsPath = "~/.laforge/credentials.yaml"

// CredentialStore provides the remote password for a project. The desktop
// shell backs this with the OS keychain. The file implementation below is
// what the CLI uses.
type CredentialStore interface {
	// Get returns the secret for the project, or "" if none is stored.
	Get(projectID string) (string, error)
	Set(projectID, secret string) error
	Delete(projectID string) error
}

type fileCredentialStore struct {
	path string
}

// NewCredentialStore opens the credential file at the default path.
func NewCredentialStore() (CredentialStore, error) {
	path, err := homedirExpand(CredentialsPath)
	if err != nil {
		return nil, errors.WithContext(err, "expand credentials path")
	}
	return NewCredentialStoreAt(path), nil
}

// NewCredentialStoreAt opens the credential file at an explicit path.
func NewCredentialStoreAt(path string) CredentialStore {
	return &fileCredentialStore{path: path}
}

func (s *fileCredentialStore) Get(projectID string) (string, error) {
	secrets, err := s.read()
	if err != nil {
		return "", err
	}
	return secrets[projectID], nil
}

func (s *fileCredentialStore) Set(projectID, secret string) error {
	secrets, err := s.read()
	if err != nil {
		return err
	}
	secrets[projectID] = secret
	return s.write(secrets)
}

func (s *fileCredentialStore) Delete(projectID string) error {
	secrets, err := s.read()
	if err != nil {
		return err
	}
	delete(secrets, projectID)
	return s.write(secrets)
}

func (s *fileCredentialStore) read() (map[string]string, error) {
	contents, err := afero.ReadFile(fs, s.path)
	if err != nil {
		if isPathNotFoundError(err) {
			return map[string]string{}, nil
		}
		return nil, errors.WithContext(err, "read credentials")
	}

	secrets := map[string]string{}
	if err := yaml.Unmarshal(contents, &secrets); err != nil {
		return nil, errors.WithContext(err, "parse credentials")
	}
	return secrets, nil
}

func (s *fileCredentialStore) write(secrets map[string]string) error {
	yamlBytes, err := yaml.Marshal(secrets)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.WithContext(err, "create config directory")
	}

	// The file holds plaintext secrets, keep it out of group and world reach.
	if err := afero.WriteFile(fs, s.path, yamlBytes, 0600); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}
