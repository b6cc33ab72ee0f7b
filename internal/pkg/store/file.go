package store

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileBackend serves users and devices from a YAML seed file.  Unlinking is
// kept in memory only.
type FileBackend struct {
	mu       sync.RWMutex
	users    map[string]SeedUser
	tokens   map[string]string
	unlinked map[string]bool
}

// LoadFile reads a YAML seed file
func LoadFile(path string) (*FileBackend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading device file")
	}

	seed, err := ParseSeed(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	return NewFileBackend(seed)
}

// ParseSeed decodes a YAML seed, rejecting unknown keys
func ParseSeed(r io.Reader) (Seed, error) {
	var seed Seed

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return Seed{}, err
	}

	return seed, nil
}

// NewFileBackend indexes a seed by user and token
func NewFileBackend(seed Seed) (*FileBackend, error) {
	b := &FileBackend{
		users:    make(map[string]SeedUser, len(seed.Users)),
		tokens:   make(map[string]string),
		unlinked: make(map[string]bool),
	}

	for _, u := range seed.Users {
		if u.ID == "" {
			return nil, errors.New("seed user without id")
		}
		if _, ok := b.users[u.ID]; ok {
			return nil, errors.Errorf("user %s listed twice", u.ID)
		}
		b.users[u.ID] = u

		for _, t := range u.Tokens {
			if owner, ok := b.tokens[t]; ok && owner != u.ID {
				return nil, errors.Errorf("token shared by users %s and %s", owner, u.ID)
			}
			b.tokens[t] = u.ID
		}
	}

	return b, nil
}

func (b *FileBackend) UserByToken(ctx context.Context, token string) (*User, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	id, ok := b.tokens[token]
	if !ok || b.unlinked[id] {
		return nil, ErrUnknownToken
	}

	u := b.users[id].User
	return &u, nil
}

func (b *FileBackend) LoadDevices(ctx context.Context, userID string) ([]DeviceRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	u, ok := b.users[userID]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownUser, "loading devices of %s", userID)
	}

	out := make([]DeviceRecord, len(u.Devices))
	copy(out, u.Devices)

	return out, nil
}

func (b *FileBackend) UnlinkUser(ctx context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.users[userID]; !ok {
		return errors.Wrapf(ErrUnknownUser, "unlinking %s", userID)
	}
	b.unlinked[userID] = true

	return nil
}

func (b *FileBackend) Close() error {
	return nil
}
