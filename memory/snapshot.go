package memory

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/RCFilm/AiRC-LLM/internal/fsutil"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a snapshot payload is encoded.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	}
	return 0, fmt.Errorf("%w: unknown compression %q", ErrConfiguration, name)
}

const snapshotVersion uint16 = 1

var snapshotMagic = [4]byte{'A', 'I', 'M', 'S'}

type snapshotHeader struct {
	Magic       [4]byte
	Version     uint16
	Compression uint8
	Dimension   uint32
	Capacity    uint64
	Count       uint64
	RawLen      uint64
	PayloadLen  uint64
	Checksum    uint32
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

// Pooled decoders limit DecodeAll to the capacity of the destination, so a
// payload never inflates past the raw length its header declares.
func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecodeAllCapLimit(true))
}

// compress returns the encoded payload and the encoding actually used. Data
// that does not shrink is stored as is.
func compress(c Compression, raw []byte) ([]byte, Compression, error) {
	switch c {
	case CompressionNone:
		return raw, CompressionNone, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, c, fmt.Errorf("failed to compress snapshot: %w", err)
		}
		if n == 0 || n >= len(raw) {
			return raw, CompressionNone, nil
		}
		return dst[:n], CompressionLZ4, nil
	case CompressionZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, c, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		defer zstdEncoderPool.Put(enc)
		dst := enc.EncodeAll(raw, nil)
		if len(dst) >= len(raw) {
			return raw, CompressionNone, nil
		}
		return dst, CompressionZSTD, nil
	}
	return nil, c, fmt.Errorf("%w: unknown compression %d", ErrConfiguration, c)
}

func decompress(c Compression, payload []byte, rawLen uint64) ([]byte, error) {
	switch c {
	case CompressionNone:
		if uint64(len(payload)) != rawLen {
			return nil, fmt.Errorf("payload holds %d bytes, header says %d", len(payload), rawLen)
		}
		return payload, nil
	case CompressionLZ4:
		// lz4 cannot expand a block by more than 255x
		if rawLen > uint64(len(payload))*255+16 {
			return nil, fmt.Errorf("implausible raw length %d", rawLen)
		}
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, err
		}
		if uint64(n) != rawLen {
			return nil, fmt.Errorf("decompressed %d bytes, header says %d", n, rawLen)
		}
		return raw, nil
	case CompressionZSTD:
		var frame zstd.Header
		if err := frame.Decode(payload); err != nil {
			return nil, fmt.Errorf("invalid zstd frame: %w", err)
		}
		if frame.HasFCS && frame.FrameContentSize != rawLen {
			return nil, fmt.Errorf("zstd frame does not declare %d raw bytes", rawLen)
		}
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer zstdDecoderPool.Put(dec)
		raw, err := dec.DecodeAll(payload, make([]byte, 0, rawLen))
		if err != nil {
			return nil, err
		}
		if uint64(len(raw)) != rawLen {
			return nil, fmt.Errorf("decompressed %d bytes, header says %d", len(raw), rawLen)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("unknown compression %d", c)
}

// WriteTo writes a self describing snapshot: dimension, capacity, the texts
// in label order and the encoded index.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	if s.quarantined {
		return 0, fmt.Errorf("failed to write snapshot: %w", ErrInconsistentState)
	}

	var raw bytes.Buffer
	for _, text := range s.texts {
		raw.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(text))))
		raw.WriteString(text)
	}
	if _, err := s.index.WriteTo(&raw); err != nil {
		return 0, fmt.Errorf("failed to write snapshot: %w", err)
	}

	payload, used, err := compress(s.compression, raw.Bytes())
	if err != nil {
		return 0, err
	}
	header := snapshotHeader{
		Magic:       snapshotMagic,
		Version:     snapshotVersion,
		Compression: uint8(used),
		Dimension:   uint32(s.dimension),
		Capacity:    uint64(s.index.Capacity()),
		Count:       uint64(len(s.texts)),
		RawLen:      uint64(raw.Len()),
		PayloadLen:  uint64(len(payload)),
		Checksum:    crc32.ChecksumIEEE(raw.Bytes()),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return 0, fmt.Errorf("failed to write snapshot header: %w", err)
	}
	n, err := w.Write(payload)
	written := int64(binary.Size(&header) + n)
	if err != nil {
		return written, fmt.Errorf("failed to write snapshot payload: %w", err)
	}
	return written, nil
}

// ReadFrom replaces the store with the snapshot in r. The snapshot must have
// been taken from a store of the same dimension. Nothing changes unless the
// whole snapshot decodes and its texts match its index.
func (s *Store) ReadFrom(r io.Reader) (int64, error) {
	var header snapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return 0, corrupt("truncated snapshot header: %v", err)
	}
	read := int64(binary.Size(&header))

	switch {
	case header.Magic != snapshotMagic:
		return read, corrupt("unexpected snapshot magic %q", header.Magic[:])
	case header.Version != snapshotVersion:
		return read, corrupt("unsupported snapshot version %d", header.Version)
	case int(header.Dimension) != s.dimension:
		return read, corrupt("snapshot dimension %d, store dimension %d", header.Dimension, s.dimension)
	case header.Count > header.Capacity:
		return read, corrupt("snapshot count %d exceeds capacity %d", header.Count, header.Capacity)
	case header.PayloadLen > math.MaxInt64:
		return read, corrupt("implausible payload length %d", header.PayloadLen)
	}

	var payload bytes.Buffer
	n, err := io.CopyN(&payload, r, int64(header.PayloadLen))
	read += n
	if err != nil {
		return read, corrupt("truncated snapshot payload: %v", err)
	}
	raw, err := decompress(Compression(header.Compression), payload.Bytes(), header.RawLen)
	if err != nil {
		return read, corrupt("%v", err)
	}
	if sum := crc32.ChecksumIEEE(raw); sum != header.Checksum {
		return read, corrupt("checksum mismatch: stored %08x, computed %08x", header.Checksum, sum)
	}

	br := bytes.NewReader(raw)
	var texts []string
	if header.Count > 0 {
		texts = make([]string, 0, min(header.Count, 1<<16))
	}
	for i := uint64(0); i < header.Count; i++ {
		var size uint32
		if err := binary.Read(br, binary.LittleEndian, &size); err != nil {
			return read, corrupt("truncated text %d", i)
		}
		if int64(size) > int64(br.Len()) {
			return read, corrupt("text %d overruns the payload", i)
		}
		text := make([]byte, size)
		if _, err := io.ReadFull(br, text); err != nil {
			return read, corrupt("truncated text %d", i)
		}
		texts = append(texts, string(text))
	}

	index, err := s.emptyIndex(s.index.Capacity())
	if err != nil {
		return read, err
	}
	if _, err := index.ReadFrom(br); err != nil {
		return read, fmt.Errorf("failed to decode snapshot index: %w", err)
	}
	if br.Len() != 0 {
		return read, corrupt("%d trailing bytes after the index", br.Len())
	}
	if index.Len() != len(texts) {
		return read, corrupt("index holds %d records, snapshot holds %d texts", index.Len(), len(texts))
	}
	if err := checkLabels(index); err != nil {
		return read, err
	}

	s.index = index
	s.texts = texts
	s.quarantined = false
	return read, nil
}

// Save writes a snapshot to path atomically.
func (s *Store) Save(path string) error {
	return fsutil.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := s.WriteTo(w)
		return err
	})
}

// Load replaces the store with the snapshot at path.
func (s *Store) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := s.ReadFrom(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("failed to load snapshot %s: %w", path, err)
	}
	return nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrCorruptIndexFile}, args...)...)
}
