package checkpoint

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/roach88/timecat/internal/ir"
)

// Persister saves and restores a cache's entries.
type Persister interface {
	Load() ([]ir.Checkpoint, error)
	Save(entries []ir.Checkpoint) error
}

// File layout:
//
//	magic "TCCP" | version (1 byte) | blake3 digest (32 bytes) | zstd(cbor(entries))
//
// The digest covers the compressed body, so a flipped byte anywhere is
// caught before decompression.
const (
	fileMagic   = "TCCP"
	fileVersion = 1
	digestSize  = 32
	headerSize  = len(fileMagic) + 1 + digestSize
)

// digestContext domain-separates checkpoint digests from any other blake3
// use of the same bytes.
const digestContext = "timecat checkpoint cache v1"

// ErrCorrupt is returned by FilePersister.Load for unreadable files.
var ErrCorrupt = errors.New("checkpoint file corrupt")

// encMode uses Core Deterministic Encoding so the same entries always
// produce the same file.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	// zstd.Encoder and zstd.Decoder are safe for concurrent use.
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("checkpoint: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("checkpoint: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("checkpoint: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("checkpoint: zstd decoder initialization failed: " + err.Error())
	}
}

// FilePersister stores the cache in a single file, replaced atomically on
// every save.
type FilePersister struct {
	path string
}

// NewFilePersister returns a persister for path. The file need not exist.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the file location.
func (p *FilePersister) Path() string { return p.path }

// Encode serializes entries in the file layout.
func Encode(entries []ir.Checkpoint) ([]byte, error) {
	if entries == nil {
		entries = []ir.Checkpoint{}
	}
	raw, err := encMode.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoints: %w", err)
	}
	body := zstdEncoder.EncodeAll(raw, nil)
	digest := digestOf(body)

	var buf bytes.Buffer
	buf.Grow(headerSize + len(body))
	buf.WriteString(fileMagic)
	buf.WriteByte(fileVersion)
	buf.Write(digest[:])
	buf.Write(body)
	return buf.Bytes(), nil
}

// Decode parses the file layout. Any structural problem returns an error
// wrapping ErrCorrupt.
func Decode(data []byte) ([]ir.Checkpoint, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: truncated header (%d bytes)", ErrCorrupt, len(data))
	}
	if string(data[:len(fileMagic)]) != fileMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := data[len(fileMagic)]; v != fileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	var want [digestSize]byte
	copy(want[:], data[len(fileMagic)+1:headerSize])
	body := data[headerSize:]
	if digestOf(body) != want {
		return nil, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}

	raw, err := zstdDecoder.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd decompress: %v", ErrCorrupt, err)
	}
	var entries []ir.Checkpoint
	if err := decMode.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: cbor decode: %v", ErrCorrupt, err)
	}
	return entries, nil
}

// Load reads the file. A missing file is an empty cache, not an error.
func (p *FilePersister) Load() ([]ir.Checkpoint, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}
	return Decode(data)
}

// Save writes entries to a temporary file and renames it over the target.
func (p *FilePersister) Save(entries []ir.Checkpoint) error {
	data, err := Encode(entries)
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace checkpoint file: %w", err)
	}
	return nil
}

func digestOf(body []byte) [digestSize]byte {
	h := blake3.NewDeriveKey(digestContext)
	h.Write(body)
	var out [digestSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// MemoryPersister keeps the last saved entries in memory.
type MemoryPersister struct {
	mu   sync.Mutex
	data []byte
}

// Load decodes the last save.
func (m *MemoryPersister) Load() ([]ir.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return Decode(m.data)
}

// Save encodes entries.
func (m *MemoryPersister) Save(entries []ir.Checkpoint) error {
	data, err := Encode(entries)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}
