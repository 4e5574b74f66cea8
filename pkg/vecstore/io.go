package vecstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Serialized indexes share one framing:
//
//	[4B magic] [4B version] [body ...] [8B xxhash64 of magic..body]
//
// HNSW body ("TGHN"):
//
//	[4B dim] [4B M] [4B efConstruction] [4B efSearch] [8B seed]
//	[4B count] [4B maxLevel] [4B entryID]
//	count × { [4B idLen] [id] [4B level] [dim × 4B vector]
//	          (level+1) × { [4B n] [n × 4B friend] } }
//
// Flat body ("TGFL"):
//
//	[4B dim] [4B count] count × { [4B idLen] [id] [dim × 4B vector] }
//
// All integers are little endian.
var (
	hnswMagic = [4]byte{'T', 'G', 'H', 'N'}
	flatMagic = [4]byte{'T', 'G', 'F', 'L'}
)

const formatVersion uint32 = 1

// Sanity bounds applied while decoding so a damaged header cannot trigger
// huge allocations.
const (
	maxDim     = 1 << 16
	maxCount   = 1 << 28
	maxIDLen   = 1 << 16
	maxLevel   = 31
	maxFriends = 1 << 12

	// maxPrealloc caps capacity reserved from a header count before the
	// checksum has been verified; larger indexes grow by append.
	maxPrealloc = 1 << 12
)

var le = binary.LittleEndian

// encoder writes through a running checksum. The first error sticks.
type encoder struct {
	bw  *bufio.Writer
	sum *xxhash.Digest
	w   io.Writer
	err error
}

func newEncoder(w io.Writer) *encoder {
	bw := bufio.NewWriter(w)
	sum := xxhash.New()
	return &encoder{bw: bw, sum: sum, w: io.MultiWriter(bw, sum)}
}

func (e *encoder) put(v any) {
	if e.err == nil && binary.Size(v) != 0 {
		e.err = binary.Write(e.w, le, v)
	}
}

func (e *encoder) putString(s string) {
	e.put(uint32(len(s)))
	if e.err == nil {
		_, e.err = io.WriteString(e.w, s)
	}
}

// finish appends the checksum trailer and flushes.
func (e *encoder) finish() error {
	if e.err != nil {
		return fmt.Errorf("vecstore: save: %w", e.err)
	}
	if err := binary.Write(e.bw, le, e.sum.Sum64()); err != nil {
		return fmt.Errorf("vecstore: save: %w", err)
	}
	if err := e.bw.Flush(); err != nil {
		return fmt.Errorf("vecstore: save: %w", err)
	}
	return nil
}

// decoder reads through a running checksum. The first error sticks.
type decoder struct {
	br  *bufio.Reader
	sum *xxhash.Digest
	r   io.Reader
	err error
}

func newDecoder(r io.Reader) *decoder {
	br := bufio.NewReader(r)
	sum := xxhash.New()
	return &decoder{br: br, sum: sum, r: io.TeeReader(br, sum)}
}

func (d *decoder) get(v any) {
	if d.err == nil && binary.Size(v) != 0 {
		d.err = binary.Read(d.r, le, v)
	}
}

func (d *decoder) u32(limit uint32, what string) uint32 {
	var v uint32
	d.get(&v)
	if d.err == nil && v > limit {
		d.err = fmt.Errorf("%s %d out of range", what, v)
	}
	return v
}

func (d *decoder) getString() string {
	n := d.u32(maxIDLen, "id length")
	if d.err != nil {
		return ""
	}
	buf := make([]byte, n)
	_, d.err = io.ReadFull(d.r, buf)
	return string(buf)
}

func (d *decoder) vector(dim int) []float32 {
	v := make([]float32, dim)
	d.get(v)
	return v
}

// finish verifies the trailer and that nothing follows it.
func (d *decoder) finish() error {
	if d.err != nil {
		return d.corrupt(d.err)
	}
	want := d.sum.Sum64()
	var got uint64
	if err := binary.Read(d.br, le, &got); err != nil {
		return d.corrupt(fmt.Errorf("checksum: %w", err))
	}
	if got != want {
		return d.corrupt(fmt.Errorf("checksum mismatch: %016x != %016x", got, want))
	}
	if _, err := d.br.ReadByte(); err != io.EOF {
		return d.corrupt(errors.New("trailing data after checksum"))
	}
	return nil
}

func (d *decoder) corrupt(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %w", ErrCorrupt, err)
}

// Save serializes the index. See the package-level format description.
func (h *HNSW) Save(w io.Writer) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	e := newEncoder(w)
	e.put(hnswMagic)
	e.put(formatVersion)
	e.put([]uint32{uint32(h.cfg.Dim), uint32(h.cfg.M), uint32(h.cfg.EfConstruction), uint32(h.cfg.EfSearch)})
	e.put(h.cfg.Seed)
	e.put(uint32(len(h.nodes)))
	e.put(uint32(h.maxLevel))
	e.put(h.entryID)
	for _, nd := range h.nodes {
		e.putString(nd.id)
		e.put(uint32(nd.level))
		e.put(nd.vector)
		for lev := 0; lev <= nd.level; lev++ {
			e.put(uint32(len(nd.friends[lev])))
			e.put(nd.friends[lev])
		}
	}
	return e.finish()
}

// Save serializes the index. See the package-level format description.
func (f *Flat) Save(w io.Writer) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	e := newEncoder(w)
	e.put(flatMagic)
	e.put(formatVersion)
	e.put(uint32(f.dim))
	e.put(uint32(len(f.ids)))
	for i, id := range f.ids {
		e.putString(id)
		e.put(f.vecs[i])
	}
	return e.finish()
}

// Load reads an index written by [HNSW.Save] or [Flat.Save]. Any framing,
// bounds or checksum failure wraps [ErrCorrupt].
func Load(r io.Reader) (Index, error) {
	d := newDecoder(r)
	var magic [4]byte
	d.get(&magic)
	version := d.u32(^uint32(0), "version")
	if d.err != nil {
		return nil, d.corrupt(d.err)
	}
	if version != formatVersion {
		return nil, d.corrupt(fmt.Errorf("unsupported version %d", version))
	}
	switch magic {
	case hnswMagic:
		return loadHNSW(d)
	case flatMagic:
		return loadFlat(d)
	default:
		return nil, d.corrupt(fmt.Errorf("unknown magic %q", magic[:]))
	}
}

func loadHNSW(d *decoder) (*HNSW, error) {
	dim := int(d.u32(maxDim, "dim"))
	cfg := HNSWConfig{
		Dim:            dim,
		M:              int(d.u32(maxFriends, "M")),
		EfConstruction: int(d.u32(1<<20, "efConstruction")),
		EfSearch:       int(d.u32(1<<20, "efSearch")),
	}
	d.get(&cfg.Seed)
	count := d.u32(maxCount, "count")
	top := int(d.u32(maxLevel, "max level"))
	var entry int32
	d.get(&entry)
	if d.err != nil {
		return nil, d.corrupt(d.err)
	}
	if dim == 0 {
		return nil, d.corrupt(errors.New("zero dimension"))
	}
	if (count == 0) != (entry < 0) || entry >= int32(count) {
		return nil, d.corrupt(fmt.Errorf("entry point %d invalid for %d nodes", entry, count))
	}

	h := NewHNSW(cfg)
	h.nodes = make([]*hnswNode, 0, min(count, maxPrealloc))
	h.idMap = make(map[string]uint32, min(count, maxPrealloc))
	h.entryID = entry
	h.maxLevel = top
	for i := uint32(0); i < count && d.err == nil; i++ {
		nd := &hnswNode{id: d.getString()}
		nd.level = int(d.u32(uint32(top), "level"))
		nd.vector = d.vector(dim)
		if d.err != nil {
			break
		}
		nd.friends = make([][]uint32, nd.level+1)
		for lev := range nd.friends {
			n := d.u32(maxFriends, "friend count")
			if d.err != nil {
				break
			}
			fr := make([]uint32, n)
			d.get(fr)
			for _, f := range fr {
				if f >= count && d.err == nil {
					d.err = fmt.Errorf("friend %d out of range", f)
				}
			}
			nd.friends[lev] = fr
		}
		if _, dup := h.idMap[nd.id]; dup && d.err == nil {
			d.err = fmt.Errorf("duplicate id %q", nd.id)
		}
		h.idMap[nd.id] = i
		h.nodes = append(h.nodes, nd)
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return h, nil
}

func loadFlat(d *decoder) (*Flat, error) {
	dim := int(d.u32(maxDim, "dim"))
	count := d.u32(maxCount, "count")
	if d.err != nil {
		return nil, d.corrupt(d.err)
	}
	if dim == 0 {
		return nil, d.corrupt(errors.New("zero dimension"))
	}
	f := NewFlat(dim)
	for i := uint32(0); i < count && d.err == nil; i++ {
		id := d.getString()
		vec := d.vector(dim)
		if _, dup := f.seen[id]; dup && d.err == nil {
			d.err = fmt.Errorf("duplicate id %q", id)
		}
		f.seen[id] = struct{}{}
		f.ids = append(f.ids, id)
		f.vecs = append(f.vecs, vec)
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return f, nil
}
