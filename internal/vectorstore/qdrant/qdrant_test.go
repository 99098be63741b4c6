package qdrant

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/domain"
	"pdfrag/internal/vectorindex"
	"pdfrag/internal/vectorstore"
)

// fakeClient keeps collections in memory, converting upserted points the way
// the server returns them from a scroll.
type fakeClient struct {
	collections map[string][]*qdrant.RetrievedPoint
	aliases     map[string]string
	upsertErr   error
	aliasErr    error
	closed      bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		collections: make(map[string][]*qdrant.RetrievedPoint),
		aliases:     make(map[string]string),
	}
}

func (f *fakeClient) ListAliases(context.Context) ([]*qdrant.AliasDescription, error) {
	out := make([]*qdrant.AliasDescription, 0, len(f.aliases))
	for alias, name := range f.aliases {
		out = append(out, &qdrant.AliasDescription{AliasName: alias, CollectionName: name})
	}
	return out, nil
}

// UpdateAliases applies all operations or none.
func (f *fakeClient) UpdateAliases(_ context.Context, ops []*qdrant.AliasOperations) error {
	if f.aliasErr != nil {
		return f.aliasErr
	}
	next := make(map[string]string, len(f.aliases))
	for k, v := range f.aliases {
		next[k] = v
	}
	for _, op := range ops {
		switch {
		case op.GetCreateAlias() != nil:
			c := op.GetCreateAlias()
			if _, ok := next[c.GetAliasName()]; ok {
				return fmt.Errorf("alias %s already exists", c.GetAliasName())
			}
			next[c.GetAliasName()] = c.GetCollectionName()
		case op.GetDeleteAlias() != nil:
			delete(next, op.GetDeleteAlias().GetAliasName())
		}
	}
	f.aliases = next
	return nil
}

// read resolves alias the way a search against it would.
func (f *fakeClient) read(alias string) []*qdrant.RetrievedPoint {
	return f.collections[f.aliases[alias]]
}

func (f *fakeClient) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.collections[req.GetCollectionName()] = nil
	return nil
}

func (f *fakeClient) DeleteCollection(_ context.Context, name string) error {
	delete(f.collections, name)
	return nil
}

func (f *fakeClient) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	name := req.GetCollectionName()
	// reverse order: the server does not return points in insertion order
	for i := len(req.GetPoints()) - 1; i >= 0; i-- {
		p := req.GetPoints()[i]
		f.collections[name] = append(f.collections[name], &qdrant.RetrievedPoint{
			Id:      p.GetId(),
			Payload: p.GetPayload(),
			Vectors: &qdrant.VectorsOutput{VectorsOptions: &qdrant.VectorsOutput_Vector{
				Vector: &qdrant.VectorOutput{Data: inputVector(p.GetVectors().GetVector())},
			}},
		})
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeClient) Count(_ context.Context, req *qdrant.CountPoints) (uint64, error) {
	return uint64(len(f.collections[req.GetCollectionName()])), nil
}

func (f *fakeClient) Scroll(_ context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error) {
	pts := f.collections[req.GetCollectionName()]
	if n := int(req.GetLimit()); n < len(pts) {
		pts = pts[:n]
	}
	return pts, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func inputVector(v *qdrant.Vector) []float32 {
	if d := v.GetDense(); d != nil {
		return d.GetData()
	}
	return v.GetData()
}

func passageID(seq int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("resume.pdf:%d", seq))).String()
}

func testIndex(t *testing.T) *vectorindex.Index {
	t.Helper()
	idx, err := vectorindex.Build("hashing-4", []domain.Passage{
		{ID: passageID(0), DocumentID: "resume.pdf", Text: "Skills: Python, Go.", Page: 1, Seq: 0},
		{ID: passageID(1), DocumentID: "resume.pdf", Text: "Experience: 3 years at Acme.", Page: 1, Seq: 1},
		{ID: passageID(2), DocumentID: "resume.pdf", Text: "Education: BSc.", Page: 2, Seq: 2},
	}, [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}})
	require.NoError(t, err)
	return idx
}

func TestCollectionName(t *testing.T) {
	s := newStorage(newFakeClient(), "")
	assert.Equal(t, "pdfrag_embeddings_my_resume_pdf_idx", s.Collection("embeddings_my resume.pdf.idx"))
}

func TestStorage_RoundTripRestoresOrder(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	s := newStorage(fc, "test_")
	idx := testIndex(t)

	require.NoError(t, s.Save(ctx, "embeddings_resume.pdf.idx", idx))
	got, err := s.Load(ctx, "embeddings_resume.pdf.idx")
	require.NoError(t, err)

	assert.Equal(t, idx.Passages(), got.Passages())
	assert.Equal(t, idx.Vectors(), got.Vectors())
	assert.Equal(t, "hashing-4", got.Embedder())

	// saving again replaces rather than appends
	first := fc.aliases["test_embeddings_resume_pdf_idx"]
	require.NoError(t, s.Save(ctx, "embeddings_resume.pdf.idx", idx))
	assert.NotEqual(t, first, fc.aliases["test_embeddings_resume_pdf_idx"])
	assert.Len(t, fc.read("test_embeddings_resume_pdf_idx"), 3)
	assert.Len(t, fc.collections, 1)

	require.NoError(t, s.Delete(ctx, "embeddings_resume.pdf.idx"))
	require.NoError(t, s.Delete(ctx, "embeddings_resume.pdf.idx"))
	assert.Empty(t, fc.collections)
	assert.Empty(t, fc.aliases)
	_, err = s.Load(ctx, "embeddings_resume.pdf.idx")
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)

	require.NoError(t, s.Close())
	assert.True(t, fc.closed)
}

func TestStorage_LoadEmptyCollection(t *testing.T) {
	fc := newFakeClient()
	s := newStorage(fc, "")
	fc.collections["k_gen"] = nil
	fc.aliases[s.Collection("k")] = "k_gen"

	_, err := s.Load(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrIndex)
}

func TestStorage_SaveError(t *testing.T) {
	fc := newFakeClient()
	fc.upsertErr = errors.New("unavailable")
	err := newStorage(fc, "").Save(context.Background(), "k", testIndex(t))
	assert.ErrorContains(t, err, "unavailable")
	assert.Empty(t, fc.collections)
	assert.Empty(t, fc.aliases)
}

func TestStorage_FailedSaveKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	s := newStorage(fc, "")
	idx := testIndex(t)
	require.NoError(t, s.Save(ctx, "k", idx))
	served := fc.aliases[s.Collection("k")]

	for name, breakIt := range map[string]func(){
		"upsert": func() { fc.upsertErr = errors.New("connection reset") },
		"alias":  func() { fc.aliasErr = errors.New("connection reset") },
	} {
		t.Run(name, func(t *testing.T) {
			fc.upsertErr, fc.aliasErr = nil, nil
			breakIt()

			require.Error(t, s.Save(ctx, "k", idx))
			assert.Equal(t, served, fc.aliases[s.Collection("k")])
			assert.Len(t, fc.collections, 1)

			fc.upsertErr, fc.aliasErr = nil, nil
			got, err := s.Load(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, idx.Passages(), got.Passages())
		})
	}
}

func TestFromPoints_Rejects(t *testing.T) {
	point := func(payload map[string]any, vec []float32) *qdrant.RetrievedPoint {
		return &qdrant.RetrievedPoint{
			Id:      qdrant.NewIDUUID(passageID(0)),
			Payload: qdrant.NewValueMap(payload),
			Vectors: &qdrant.VectorsOutput{VectorsOptions: &qdrant.VectorsOutput_Vector{
				Vector: &qdrant.VectorOutput{Data: vec},
			}},
		}
	}
	good := map[string]any{"text": "x", "embedder": "e", "format_version": vectorindex.FormatVersion}

	tests := map[string][]*qdrant.RetrievedPoint{
		"version": {point(map[string]any{"text": "x", "embedder": "e", "format_version": 99}, []float32{1})},
		"no vector": {point(good, nil)},
		"mixed embedders": {
			point(good, []float32{1}),
			point(map[string]any{"text": "y", "embedder": "other", "format_version": vectorindex.FormatVersion}, []float32{1}),
		},
		"dimension": {point(good, []float32{1}), point(good, []float32{1, 2})},
	}
	for name, pts := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := fromPoints(pts)
			assert.ErrorIs(t, err, domain.ErrIndex)
		})
	}
}
