package index

import (
	"encoding/binary"
)

// Indexed fields
const (
	FieldTitle   = "title"
	FieldContent = "content"
)

// Fields lists the searchable fields in the order unprefixed terms expand to.
var Fields = []string{FieldContent, FieldTitle}

func isField(name string) bool {
	return name == FieldTitle || name == FieldContent
}

// Key prefixes for different data types
const (
	metaKey       = "meta"
	docPrefix     = "doc:"
	lengthsPrefix = "len:"
	postingPrefix = "post:"
)

// makeDocKey generates a key for stored fields by document ordinal.
// Format: prefix + ordinal (big endian)
func makeDocKey(ord uint32) []byte {
	buf := make([]byte, len(docPrefix)+4)
	offset := copy(buf, docPrefix)
	binary.BigEndian.PutUint32(buf[offset:], ord)
	return buf
}

// makeLengthsKey generates the key holding every document length of a field.
func makeLengthsKey(field string) []byte {
	return []byte(lengthsPrefix + field)
}

// makePostingKey generates the key of a term's posting list in a field.
// Format: prefix:field:term
func makePostingKey(field, term string) []byte {
	buf := make([]byte, 0, len(postingPrefix)+len(field)+1+len(term))
	buf = append(buf, postingPrefix...)
	buf = append(buf, field...)
	buf = append(buf, ':')
	buf = append(buf, term...)
	return buf
}
