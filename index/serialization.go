package index

import (
	"github.com/cockroachdb/errors"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/verbatim/core"
)

// Metadata describes a built index.
type Metadata struct {
	Documents  int
	SnapshotID string
	Terms      int
	// Total analyzed tokens per field, for average field lengths.
	TitleTokens   int
	ContentTokens int
}

// storedDoc holds the retrievable fields of a document.
type storedDoc struct {
	ContentID core.ID
	RefID     string
	Title     string
}

// posting is one document's occurrences of a term in a field.
// Term frequency is len(Positions).
type posting struct {
	Ord       uint32
	Positions []uint32
}

type encoder struct {
	buf []byte
}

func (e *encoder) putUint(v uint64) {
	start := len(e.buf)
	e.buf = append(e.buf, make([]byte, varint.Uint64.Size(v))...)
	varint.Uint64.Marshal(v, e.buf[start:])
}

func (e *encoder) putString(s string) {
	start := len(e.buf)
	e.buf = append(e.buf, make([]byte, ord.String.Size(s))...)
	ord.String.Marshal(s, e.buf[start:])
}

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) getUint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.buf)
	if err != nil {
		d.err = errors.Mark(errors.Wrap(err, "decoding integer"), ErrCorruptIndex)
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) getString() string {
	if d.err != nil {
		return ""
	}
	s, n, err := ord.String.Unmarshal(d.buf)
	if err != nil {
		d.err = errors.Mark(errors.Wrap(err, "decoding string"), ErrCorruptIndex)
		return ""
	}
	d.buf = d.buf[n:]
	return s
}

// length decodes a collection length and checks it against the remaining
// bytes, each element taking at least one.
func (d *decoder) length() int {
	n := d.getUint()
	if d.err == nil && n > uint64(len(d.buf)) {
		d.err = errors.Mark(errors.Newf("length %d exceeds %d remaining bytes", n, len(d.buf)), ErrCorruptIndex)
		return 0
	}
	return int(n)
}

func (d *decoder) done() error {
	if d.err == nil && len(d.buf) != 0 {
		return errors.Mark(errors.Newf("%d trailing bytes", len(d.buf)), ErrCorruptIndex)
	}
	return d.err
}

func marshalMetadata(m *Metadata) []byte {
	var e encoder
	e.putUint(uint64(m.Documents))
	e.putString(m.SnapshotID)
	e.putUint(uint64(m.Terms))
	e.putUint(uint64(m.TitleTokens))
	e.putUint(uint64(m.ContentTokens))
	return e.buf
}

func unmarshalMetadata(data []byte) (*Metadata, error) {
	d := decoder{buf: data}
	m := &Metadata{
		Documents:     int(d.getUint()),
		SnapshotID:    d.getString(),
		Terms:         int(d.getUint()),
		TitleTokens:   int(d.getUint()),
		ContentTokens: int(d.getUint()),
	}
	if err := d.done(); err != nil {
		return nil, errors.Wrap(err, "metadata")
	}
	return m, nil
}

func marshalStoredDoc(doc *storedDoc) []byte {
	var e encoder
	e.putUint(uint64(doc.ContentID))
	e.putString(doc.RefID)
	e.putString(doc.Title)
	return e.buf
}

func unmarshalStoredDoc(data []byte) (*storedDoc, error) {
	d := decoder{buf: data}
	doc := &storedDoc{
		ContentID: core.ID(d.getUint()),
		RefID:     d.getString(),
		Title:     d.getString(),
	}
	if err := d.done(); err != nil {
		return nil, errors.Wrap(err, "stored document")
	}
	return doc, nil
}

// marshalLengths encodes per-document field lengths indexed by ordinal.
func marshalLengths(lengths []uint32) []byte {
	var e encoder
	e.putUint(uint64(len(lengths)))
	for _, n := range lengths {
		e.putUint(uint64(n))
	}
	return e.buf
}

func unmarshalLengths(data []byte) ([]uint32, error) {
	d := decoder{buf: data}
	lengths := make([]uint32, d.length())
	for i := range lengths {
		lengths[i] = uint32(d.getUint())
	}
	if err := d.done(); err != nil {
		return nil, errors.Wrap(err, "field lengths")
	}
	return lengths, nil
}

// marshalPostings encodes a posting list sorted by ordinal. Ordinals and
// positions are delta-encoded.
func marshalPostings(postings []posting) []byte {
	var e encoder
	e.putUint(uint64(len(postings)))
	var prevOrd uint32
	for _, p := range postings {
		e.putUint(uint64(p.Ord - prevOrd))
		prevOrd = p.Ord
		e.putUint(uint64(len(p.Positions)))
		var prevPos uint32
		for _, pos := range p.Positions {
			e.putUint(uint64(pos - prevPos))
			prevPos = pos
		}
	}
	return e.buf
}

func unmarshalPostings(data []byte) ([]posting, error) {
	d := decoder{buf: data}
	postings := make([]posting, d.length())
	var cur uint32
	for i := range postings {
		cur += uint32(d.getUint())
		positions := make([]uint32, d.length())
		var pos uint32
		for j := range positions {
			pos += uint32(d.getUint())
			positions[j] = pos
		}
		postings[i] = posting{Ord: cur, Positions: positions}
	}
	if err := d.done(); err != nil {
		return nil, errors.Wrap(err, "postings")
	}
	return postings, nil
}
