package vectorindex

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"pdfrag/internal/domain"
)

const (
	formatName = "pdfrag-index"
	// FormatVersion is bumped whenever the persisted layout changes.
	FormatVersion = 1
)

var errTruncated = errors.New("truncated vector")

type persistedIndex struct {
	Format    string             `json:"format"`
	Version   int                `json:"version"`
	Embedder  string             `json:"embedder"`
	Dimension int                `json:"dimension"`
	Passages  []persistedPassage `json:"passages"`
}

type persistedPassage struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
	Page       int    `json:"page,omitempty"`
	Seq        int    `json:"seq"`
	Vector     []byte `json:"vector"`
}

// MarshalBinary encodes the index as versioned JSON. Vectors are stored as
// little-endian IEEE 754 float32 sequences.
func (i *Index) MarshalBinary() ([]byte, error) {
	out := persistedIndex{
		Format:    formatName,
		Version:   FormatVersion,
		Embedder:  i.embedder,
		Dimension: i.dimension,
		Passages:  make([]persistedPassage, len(i.passages)),
	}
	for j, p := range i.passages {
		out.Passages[j] = persistedPassage{
			ID:         p.ID,
			DocumentID: p.DocumentID,
			Text:       p.Text,
			Page:       p.Page,
			Seq:        p.Seq,
			Vector:     encodeVector(i.vectors[j]),
		}
	}
	return json.Marshal(out)
}

// UnmarshalBinary restores an index written by MarshalBinary. Foreign or
// incompatible payloads fail with domain.ErrIndex.
func (i *Index) UnmarshalBinary(data []byte) error {
	var in persistedIndex
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: decode: %v", domain.ErrIndex, err)
	}
	if in.Format != formatName {
		return fmt.Errorf("%w: unknown format %q", domain.ErrIndex, in.Format)
	}
	if in.Version != FormatVersion {
		return fmt.Errorf("%w: unsupported version %d (want %d)", domain.ErrIndex, in.Version, FormatVersion)
	}
	passages := make([]domain.Passage, len(in.Passages))
	vectors := make([][]float32, len(in.Passages))
	for j, p := range in.Passages {
		vec, err := decodeVector(p.Vector)
		if err != nil {
			return fmt.Errorf("%w: passage %d: %v", domain.ErrIndex, j, err)
		}
		if len(vec) != in.Dimension {
			return fmt.Errorf("%w: passage %d has dim %d, header says %d", domain.ErrIndex, j, len(vec), in.Dimension)
		}
		passages[j] = domain.Passage{ID: p.ID, DocumentID: p.DocumentID, Text: p.Text, Page: p.Page, Seq: p.Seq}
		vectors[j] = vec
	}
	built, err := Build(in.Embedder, passages, vectors)
	if err != nil {
		return err
	}
	*i = *built
	return nil
}

// Decode is a convenience wrapper around UnmarshalBinary.
func Decode(data []byte) (*Index, error) {
	var idx Index
	if err := idx.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &idx, nil
}

func encodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 4", errTruncated, len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
