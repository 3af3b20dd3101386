package session

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/nao1215/a11yscan/internal/browser"
)

const (
	storeVersion = 1
	filePrefix   = "session-"
	fileSuffix   = ".age"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("session: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("session: CBOR decoder initialization failed: " + err.Error())
	}
}

// record is the sealed file payload.
type record struct {
	Version  int              `cbor:"1,keyasint"`
	BaseURL  string           `cbor:"2,keyasint"`
	Username string           `cbor:"3,keyasint"`
	SavedAt  time.Time        `cbor:"4,keyasint"`
	Cookies  []browser.Cookie `cbor:"5,keyasint"`
}

// Store persists sessions between runs. Each (base URL, username) pair has
// one file, encrypted with age in passphrase mode.
type Store struct {
	dir        string
	passphrase string
	workFactor int
	now        func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithWorkFactor sets the scrypt work factor (log2 of N) used when sealing.
// The age default is 18.
func WithWorkFactor(logN int) StoreOption {
	return func(s *Store) {
		s.workFactor = logN
	}
}

// NewStore creates a Store under dir.
func NewStore(dir, passphrase string, opts ...StoreOption) (*Store, error) {
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}
	if dir == "" {
		return nil, errors.New("session store directory is empty")
	}
	s := &Store{dir: dir, passphrase: passphrase, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the file that holds the session for baseURL and username.
func (s *Store) Path(baseURL, username string) string {
	sum := blake3.Sum256([]byte(strings.TrimRight(baseURL, "/") + "|" + username))
	return filepath.Join(s.dir, filePrefix+hex.EncodeToString(sum[:12])+fileSuffix)
}

// Save seals sess to disk.
func (s *Store) Save(baseURL string, sess *Session) error {
	payload, err := encMode.Marshal(record{
		Version:  storeVersion,
		BaseURL:  baseURL,
		Username: sess.Username,
		SavedAt:  s.now(),
		Cookies:  sess.Cookies,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	recipient, err := age.NewScryptRecipient(s.passphrase)
	if err != nil {
		return fmt.Errorf("failed to create session recipient: %w", err)
	}
	if s.workFactor > 0 {
		recipient.SetWorkFactor(s.workFactor)
	}

	var sealed bytes.Buffer
	w, err := age.Encrypt(&sealed, recipient)
	if err != nil {
		return fmt.Errorf("failed to create session encryptor: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	path := s.Path(baseURL, sess.Username)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, sealed.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Load opens the session for baseURL and username. Expired cookies are
// dropped; ErrNotFound is returned when no file exists or no cookie is left.
func (s *Store) Load(baseURL, username string) (*Session, error) {
	data, err := os.ReadFile(s.Path(baseURL, username))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	identity, err := age.NewScryptIdentity(s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to create session identity: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	var rec record
	if err := decMode.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if rec.Version != storeVersion || rec.Username != username {
		return nil, ErrNotFound
	}

	sess := &Session{
		Username:      rec.Username,
		Cookies:       rec.Cookies,
		EstablishedAt: rec.SavedAt,
		Restored:      true,
	}
	sess.Cookies = sess.Live(s.now())
	if len(sess.Cookies) == 0 {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Clear removes the session for baseURL and username.
// Removing a session that does not exist is not an error.
func (s *Store) Clear(baseURL, username string) error {
	err := os.Remove(s.Path(baseURL, username))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// ClearAll removes every stored session and returns how many were removed.
func ClearAll(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove session: %w", err)
		}
		removed++
	}
	return removed, nil
}
