package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// MemoryStore keeps the session in process memory. Test and single-run
// default.
type MemoryStore struct {
	mu      sync.RWMutex
	current Ephemeral
	set     bool
	profile Profile
	hasProf bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() (Ephemeral, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return Ephemeral{}, false, nil
	}
	return s.current.Clone(), true, nil
}

func (s *MemoryStore) Set(e Ephemeral) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = e.Clone()
	s.set = true
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Ephemeral{}
	s.set = false
	return nil
}

func (s *MemoryStore) Profile() (Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile, s.hasProf, nil
}

func (s *MemoryStore) SetProfile(p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
	s.hasProf = true
	return nil
}

func (s *MemoryStore) ClearProfile() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = Profile{}
	s.hasProf = false
	return nil
}

// FileStore persists the session as a 0600 JSON file under the daemon data
// directory. The ephemeral record and the durable profile live in separate
// files so logout can remove one without the other.
type FileStore struct {
	mu          sync.Mutex
	sessionPath string
	profilePath string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{
		sessionPath: filepath.Join(dir, "ephemeral.json"),
		profilePath: filepath.Join(dir, "profile.json"),
	}
}

func (s *FileStore) Get() (Ephemeral, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out Ephemeral
	ok, err := readJSONFile(s.sessionPath, &out)
	if err != nil || !ok {
		return Ephemeral{}, false, err
	}
	if out.Validate() != nil {
		// A torn or hand-edited file is treated as absent, not trusted.
		return Ephemeral{}, false, nil
	}
	return out, true, nil
}

func (s *FileStore) Set(e Ephemeral) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONFile(s.sessionPath, e)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.sessionPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FileStore) Profile() (Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out Profile
	ok, err := readJSONFile(s.profilePath, &out)
	if err != nil || !ok {
		return Profile{}, false, err
	}
	return out, true, nil
}

func (s *FileStore) SetProfile(p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONFile(s.profilePath, p)
}

func (s *FileStore) ClearProfile() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.profilePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func readJSONFile(path string, target any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, nil
	}
	return true, nil
}

func writeJSONFile(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
