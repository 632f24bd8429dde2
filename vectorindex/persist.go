package vectorindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"math/rand"
	"os"

	"github.com/RCFilm/AiRC-LLM/internal/fsutil"
)

const formatVersion uint16 = 1

var fileMagic = [4]byte{'A', 'I', 'V', 'X'}

type fileHeader struct {
	Magic          [4]byte
	Version        uint16
	Dimension      uint32
	Capacity       uint64
	Count          uint64
	M              uint32
	EFConstruction uint32
	EFSearch       uint32
	Seed           int64
	MaxLevel       int32
	EntryPoint     uint32
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// encoder remembers the first write error so call sites stay linear.
type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) write(v any) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

// WriteTo serializes the index, checksum trailer included.
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	crc := crc32.NewIEEE()
	bw := bufio.NewWriter(io.MultiWriter(cw, crc))
	enc := &encoder{w: bw}

	enc.write(&fileHeader{
		Magic:          fileMagic,
		Version:        formatVersion,
		Dimension:      uint32(idx.dimension),
		Capacity:       uint64(idx.capacity),
		Count:          uint64(len(idx.nodes)),
		M:              uint32(idx.opts.M),
		EFConstruction: uint32(idx.opts.EFConstruction),
		EFSearch:       uint32(idx.opts.EFSearch),
		Seed:           idx.opts.Seed,
		MaxLevel:       int32(idx.maxLevel),
		EntryPoint:     idx.entryPoint,
	})
	for _, n := range idx.nodes {
		enc.write(n.label)
		enc.write(uint32(n.level))
		enc.write(n.vector)
		for _, friends := range n.friends {
			enc.write(uint32(len(friends)))
			if len(friends) > 0 {
				enc.write(friends)
			}
		}
	}
	if enc.err != nil {
		return cw.n, fmt.Errorf("failed to encode index: %w", enc.err)
	}
	if err := bw.Flush(); err != nil {
		return cw.n, fmt.Errorf("failed to encode index: %w", err)
	}
	if err := binary.Write(cw, binary.LittleEndian, crc.Sum32()); err != nil {
		return cw.n, fmt.Errorf("failed to write checksum: %w", err)
	}
	return cw.n, nil
}

// ReadFrom replaces the index with the one encoded in r. The receiver keeps
// its dimension, which must match the encoded one. Nothing changes unless the
// whole stream decodes and validates.
func (idx *Index) ReadFrom(r io.Reader) (int64, error) {
	cr := &countingReader{r: r}
	crc := crc32.NewIEEE()
	tee := io.TeeReader(cr, crc)
	read := func(v any) error {
		if err := binary.Read(tee, binary.LittleEndian, v); err != nil {
			return corrupt("truncated data: %v", err)
		}
		return nil
	}

	var h fileHeader
	if err := read(&h); err != nil {
		return cr.n, err
	}
	if h.Magic != fileMagic {
		return cr.n, corrupt("unexpected magic %q", h.Magic[:])
	}
	if h.Version != formatVersion {
		return cr.n, corrupt("unsupported version %d", h.Version)
	}
	if int(h.Dimension) != idx.dimension {
		return cr.n, corrupt("file dimension %d, expected %d", h.Dimension, idx.dimension)
	}
	if h.Capacity > math.MaxUint32 || h.Count > h.Capacity {
		return cr.n, corrupt("count %d exceeds capacity %d", h.Count, h.Capacity)
	}
	opts := Options{
		M:              int(h.M),
		EFConstruction: int(h.EFConstruction),
		EFSearch:       int(h.EFSearch),
		Seed:           h.Seed,
	}
	if err := validateConfig(int(h.Dimension), max(int(h.Capacity), 1), opts); err != nil {
		return cr.n, corrupt("%v", err)
	}

	fresh := newIndex(idx.dimension, max(idx.capacity, int(h.Capacity)), opts)
	fresh.nodes = make([]*node, 0, min(h.Count, 1<<16))
	for i := uint64(0); i < h.Count; i++ {
		var label uint64
		var level uint32
		if err := read(&label); err != nil {
			return cr.n, err
		}
		if err := read(&level); err != nil {
			return cr.n, err
		}
		if level > maxLevelCap {
			return cr.n, corrupt("node %d has level %d", i, level)
		}
		n := &node{
			label:   label,
			vector:  make([]float32, idx.dimension),
			level:   int(level),
			friends: make([][]uint32, level+1),
		}
		if err := read(n.vector); err != nil {
			return cr.n, err
		}
		for l := range n.friends {
			var count uint32
			if err := read(&count); err != nil {
				return cr.n, err
			}
			limit := uint64(opts.M)
			if l == 0 {
				limit *= 2
			}
			if uint64(count) > min(limit, h.Count) {
				return cr.n, corrupt("node %d has %d links on layer %d", i, count, l)
			}
			n.friends[l] = make([]uint32, count)
			if count > 0 {
				if err := read(n.friends[l]); err != nil {
					return cr.n, err
				}
			}
		}
		if _, ok := fresh.labels[label]; ok {
			return cr.n, corrupt("duplicate label %d", label)
		}
		fresh.labels[label] = uint32(i)
		fresh.nodes = append(fresh.nodes, n)
	}

	sum := crc.Sum32()
	var stored uint32
	if err := binary.Read(cr, binary.LittleEndian, &stored); err != nil {
		return cr.n, corrupt("missing checksum: %v", err)
	}
	if stored != sum {
		return cr.n, corrupt("checksum mismatch: stored %08x, computed %08x", stored, sum)
	}

	if err := fresh.restoreEntry(h.EntryPoint, int(h.MaxLevel)); err != nil {
		return cr.n, err
	}
	if err := fresh.checkLinks(); err != nil {
		return cr.n, err
	}
	fresh.rng = rand.New(rand.NewSource(opts.Seed + int64(h.Count)))

	*idx = *fresh
	return cr.n, nil
}

func (idx *Index) restoreEntry(entryPoint uint32, maxLevel int) error {
	if len(idx.nodes) == 0 {
		return nil
	}
	if int(entryPoint) >= len(idx.nodes) {
		return corrupt("entry point %d out of range", entryPoint)
	}
	if idx.nodes[entryPoint].level != maxLevel {
		return corrupt("entry point level %d, header says %d", idx.nodes[entryPoint].level, maxLevel)
	}
	for i, n := range idx.nodes {
		if n.level > maxLevel {
			return corrupt("node %d above top layer", i)
		}
	}
	idx.entryPoint = entryPoint
	idx.maxLevel = maxLevel
	return nil
}

func (idx *Index) checkLinks() error {
	for i, n := range idx.nodes {
		for l, friends := range n.friends {
			for _, friend := range friends {
				if int(friend) >= len(idx.nodes) {
					return corrupt("node %d links to unknown node %d", i, friend)
				}
				if idx.nodes[friend].level < l {
					return corrupt("node %d links to node %d above its top layer", i, friend)
				}
			}
		}
	}
	return nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrCorruptIndexFile}, args...)...)
}

// SaveToFile writes the index to path atomically.
func (idx *Index) SaveToFile(path string) error {
	return fsutil.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := idx.WriteTo(w)
		return err
	})
}

// LoadFromFile replaces the index with the contents of path.
func (idx *Index) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	if _, err := idx.ReadFrom(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("failed to load index from %s: %w", path, err)
	}
	return nil
}
