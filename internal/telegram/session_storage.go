package telegram

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-faster/errors"
	"github.com/gotd/td/session"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"
)

const sessionEnvelopeVersion = 1

type sessionEnvelope struct {
	Version int    `cbor:"v"`
	Data    []byte `cbor:"data"`
}

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// EncodeSession packs raw gotd session data into a printable string.
func EncodeSession(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	packed, err := cbor.Marshal(sessionEnvelope{Version: sessionEnvelopeVersion, Data: data})
	if err != nil {
		return "", errors.Wrap(err, "marshal session")
	}
	return base64.RawURLEncoding.EncodeToString(zstdEncoder.EncodeAll(packed, nil)), nil
}

// DecodeSession reverses EncodeSession.
func DecodeSession(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, session.ErrNotFound
	}
	compressed, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, errors.Wrap(err, "decode session string")
	}
	packed, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decompress session")
	}
	var env sessionEnvelope
	if err := cbor.Unmarshal(packed, &env); err != nil {
		return nil, errors.Wrap(err, "unmarshal session")
	}
	if env.Version != sessionEnvelopeVersion {
		return nil, errors.Errorf("unsupported session version %d", env.Version)
	}
	if len(env.Data) == 0 {
		return nil, session.ErrNotFound
	}
	return env.Data, nil
}

// StringSession keeps the session in memory as an encoded string. It is
// seeded from Credentials.Session and read back with String after a run.
type StringSession struct {
	mux     sync.Mutex
	encoded string
}

func NewStringSession(encoded string) *StringSession {
	return &StringSession{encoded: strings.TrimSpace(encoded)}
}

func (s *StringSession) String() string {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.encoded
}

func (s *StringSession) LoadSession(_ context.Context) ([]byte, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return DecodeSession(s.encoded)
}

func (s *StringSession) StoreSession(_ context.Context, data []byte) error {
	encoded, err := EncodeSession(data)
	if err != nil {
		return err
	}
	s.mux.Lock()
	s.encoded = encoded
	s.mux.Unlock()
	return nil
}

// FileSession stores the encoded session string in a file. Writes go to a
// temporary file that is renamed over the target, so a crash leaves either
// the old or the new session. Unreadable content loads as no session.
type FileSession struct {
	Path string
	mux  sync.Mutex
}

func (s *FileSession) LoadSession(_ context.Context) ([]byte, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	raw, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, session.ErrNotFound
	}
	data, err := DecodeSession(string(raw))
	if err != nil {
		return nil, session.ErrNotFound
	}
	return data, nil
}

func (s *FileSession) StoreSession(_ context.Context, data []byte) (re error) {
	encoded, err := EncodeSession(data)
	if err != nil {
		return err
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp session")
	}
	tmpPath := tmp.Name()
	defer func() {
		if re != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.WriteString(encoded); err != nil {
		return multierr.Append(errors.Wrap(err, "write session"), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close session")
	}
	return os.Rename(tmpPath, s.Path)
}
