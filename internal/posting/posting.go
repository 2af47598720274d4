package posting

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

const (
	// DocSeparator separates the document id from the property slots.
	DocSeparator = '\v'
	// PropertySeparator separates consecutive property slots.
	PropertySeparator = '\t'

	// reservedBytes may appear neither in property names nor in store keys.
	reservedBytes = "\t\v\f\n"
)

// ReservedBytes lists the separator bytes used by the posting and store
// encodings.
func ReservedBytes() string { return reservedBytes }

// DocID identifies a document within one index generation.
type DocID uint32

// Posting binds a document id to the property slots of its schema. Ordering
// and equality consider the document id only.
//
// Postings returned by New or Decode own their slot storage; copies made by
// assignment share it, use Clone for an independent copy.
type Posting struct {
	DocID  DocID
	schema *Schema
	values []float64
}

// New returns a posting for id with every slot set to zero.
func (s *Schema) New(id DocID) Posting {
	return Posting{DocID: id, schema: s, values: make([]float64, len(s.props))}
}

func (p Posting) Schema() *Schema { return p.schema }

// Get returns the named property. It panics when the schema lacks it.
func (p Posting) Get(name string) float64 {
	return p.values[p.schema.mustIndex(name)]
}

// Int returns the named property truncated to an integer.
func (p Posting) Int(name string) int64 {
	return int64(p.Get(name))
}

// Set stores v in the named slot. Int slots keep the truncated value.
func (p Posting) Set(name string, v float64) {
	i := p.schema.mustIndex(name)
	if p.schema.props[i].Kind == KindInt {
		v = math.Trunc(v)
	}
	p.values[i] = v
}

// Slot returns the value held by slot i.
func (p Posting) Slot(i int) float64 { return p.values[i] }

func (p Posting) Less(other Posting) bool { return p.DocID < other.DocID }

func (p Posting) Equal(other Posting) bool { return p.DocID == other.DocID }

func (p Posting) Clone() Posting {
	values := make([]float64, len(p.values))
	copy(values, p.values)
	return Posting{DocID: p.DocID, schema: p.schema, values: values}
}

// AppendEncode appends the wire form of p to dst: the document id, then
// every slot in schema order.
func (p Posting) AppendEncode(dst []byte) []byte {
	dst = strconv.AppendUint(dst, uint64(p.DocID), 10)
	dst = append(dst, DocSeparator)
	for i, prop := range p.schema.props {
		if i > 0 {
			dst = append(dst, PropertySeparator)
		}
		if prop.Kind == KindInt {
			dst = strconv.AppendInt(dst, int64(p.values[i]), 10)
		} else {
			dst = strconv.AppendFloat(dst, p.values[i], 'g', -1, 64)
		}
	}
	return dst
}

func (p Posting) Encode() string {
	return string(p.AppendEncode(nil))
}

func (p Posting) String() string {
	return fmt.Sprintf("%s(%d)", p.schema.name, p.DocID)
}

// Decode parses one encoded posting. Errors wrap errors.ErrFormat.
func Decode(s *Schema, seg []byte) (Posting, error) {
	sep := bytes.IndexByte(seg, DocSeparator)
	if sep < 0 {
		return Posting{}, fmt.Errorf("%w: missing document separator in %q", apperrors.ErrFormat, seg)
	}
	id, err := strconv.ParseUint(string(seg[:sep]), 10, 32)
	if err != nil {
		return Posting{}, fmt.Errorf("%w: document id %q: %v", apperrors.ErrFormat, seg[:sep], err)
	}
	p := s.New(DocID(id))
	rest := seg[sep+1:]
	if len(s.props) == 0 {
		if len(rest) != 0 {
			return Posting{}, fmt.Errorf("%w: schema %s has no slots, got %q", apperrors.ErrFormat, s.name, rest)
		}
		return p, nil
	}
	fields := bytes.Split(rest, []byte{PropertySeparator})
	if len(fields) != len(s.props) {
		return Posting{}, fmt.Errorf("%w: schema %s expects %d fields, got %d",
			apperrors.ErrFormat, s.name, len(s.props), len(fields))
	}
	for i, field := range fields {
		if s.props[i].Kind == KindInt {
			v, err := strconv.ParseInt(string(field), 10, 64)
			if err != nil {
				return Posting{}, fmt.Errorf("%w: property %s: %v", apperrors.ErrFormat, s.props[i].Name, err)
			}
			p.values[i] = float64(v)
			continue
		}
		v, err := strconv.ParseFloat(string(field), 64)
		if err != nil {
			return Posting{}, fmt.Errorf("%w: property %s: %v", apperrors.ErrFormat, s.props[i].Name, err)
		}
		p.values[i] = v
	}
	return p, nil
}

// IntersectPosting bundles one posting per source stream for a document
// present in all of them.
type IntersectPosting struct {
	DocID    DocID
	Postings []Posting
}

// Values returns the named property of every bundled posting, in source
// order.
func (ip IntersectPosting) Values(name string) []float64 {
	out := make([]float64, len(ip.Postings))
	for i, p := range ip.Postings {
		out[i] = p.Get(name)
	}
	return out
}
