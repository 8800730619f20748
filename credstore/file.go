package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// credentialFile is the on-disk layout: one value map per profile. The
// profile is normally the API server URL, so one file can serve several
// backends.
type credentialFile struct {
	Profiles map[string]map[Key]string `json:"profiles"`
}

// FileStore keeps credentials in a 0600 JSON file. Writes take a
// cross-process lock and replace the file atomically.
type FileStore struct {
	path    string
	profile string
	log     zerolog.Logger
}

// NewFileStore returns a FileStore for profile backed by path.
func NewFileStore(path, profile string, log zerolog.Logger) *FileStore {
	return &FileStore{path: path, profile: profile, log: log}
}

// Path returns the credentials file location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(_ context.Context, key Key) (string, bool, error) {
	file, err := f.load()
	if err != nil {
		return "", false, &StoreError{Op: "get", Key: key, Err: err}
	}
	v, ok := file.Profiles[f.profile][key]
	return v, ok, nil
}

func (f *FileStore) Set(ctx context.Context, key Key, value string) error {
	err := f.update(ctx, func(values map[Key]string) {
		values[key] = value
	})
	if err != nil {
		return &StoreError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (f *FileStore) Delete(ctx context.Context, key Key) error {
	err := f.update(ctx, func(values map[Key]string) {
		delete(values, key)
	})
	if err != nil {
		return &StoreError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// load reads the whole file. A missing file is an empty store.
func (f *FileStore) load() (*credentialFile, error) {
	file := &credentialFile{}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return file, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return file, nil
}

// update applies mutate to this profile's values under the file lock and
// writes the result back. Other profiles are preserved.
func (f *FileStore) update(ctx context.Context, mutate func(map[Key]string)) error {
	lock, err := acquireFileLock(ctx, f.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			f.log.Warn().Err(releaseErr).Str("path", f.path).Msg("failed to release lock")
		}
	}()

	file, err := f.load()
	if err != nil {
		// unreadable content is replaced rather than blocking every login
		f.log.Warn().Err(err).Str("path", f.path).Msg("discarding unreadable credentials file")
		file = &credentialFile{}
	}
	if file.Profiles == nil {
		file.Profiles = make(map[string]map[Key]string)
	}
	values := file.Profiles[f.profile]
	if values == nil {
		values = make(map[Key]string)
	}
	mutate(values)
	if len(values) == 0 {
		delete(file.Profiles, f.profile)
	} else {
		file.Profiles[f.profile] = values
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, f.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
