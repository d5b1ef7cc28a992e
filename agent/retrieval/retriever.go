// Package retrieval serves pre-embedded knowledge-base chunks from a
// persisted index described by a manifest file. A missing manifest disables
// retrieval without failing the run.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/warat-b/sitescope/agent/contract"
)

// ErrManifestNotFound gates the whole component: callers treat it as
// "retrieval disabled", never as a fatal error.
var ErrManifestNotFound = errors.New("retrieval manifest not found")

type Config struct {
	ManifestPath string `envconfig:"MANIFEST" split_words:"true" default:"data/vectorstores/manifest.json"`
	TopK         int    `envconfig:"TOP_K" split_words:"true" default:"2"`
}

// Manifest describes the persisted index: which embedding model built it,
// how the documents were chunked, and where the chunk file lives (relative
// to the manifest).
type Manifest struct {
	CollectionName string `json:"collection_name"`
	EmbeddingModel string `json:"embedding_model"`
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap"`
	GeneratedAt    string `json:"generated_at"`
	IndexFile      string `json:"index_file"`
}

type indexedChunk struct {
	Content   string                     `json:"content"`
	Embedding []float64                  `json:"embedding"`
	Metadata  contractx.DocumentMetadata `json:"metadata"`
}

// Embedder turns a query into the index's embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type openaiEmbedder struct {
	client *openaisdk.Client
	model  string
}

func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: openaisdk.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response is empty")
	}
	return resp.Data[0].Embedding, nil
}

// IndexRetriever ranks indexed chunks by cosine similarity to the query.
type IndexRetriever struct {
	manifest Manifest
	chunks   []indexedChunk
	embedder Embedder
	topK     int
}

var _ contractx.Retriever = (*IndexRetriever)(nil)

// New loads the manifest and index and wires query embeddings through the
// given client. Returns ErrManifestNotFound when no manifest exists.
func New(cfg Config, client *openaisdk.Client) (*IndexRetriever, error) {
	if client == nil {
		return nil, errors.New("embeddings client is required")
	}

	manifest, chunks, err := loadIndex(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}

	return newRetriever(cfg, manifest, chunks, &openaiEmbedder{
		client: client,
		model:  manifest.EmbeddingModel,
	})
}

// NewWithEmbedder is the seam for tests and alternative embedding backends.
func NewWithEmbedder(cfg Config, embedder Embedder) (*IndexRetriever, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	manifest, chunks, err := loadIndex(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	return newRetriever(cfg, manifest, chunks, embedder)
}

func newRetriever(cfg Config, manifest Manifest, chunks []indexedChunk, embedder Embedder) (*IndexRetriever, error) {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 2
	}
	return &IndexRetriever{
		manifest: manifest,
		chunks:   chunks,
		embedder: embedder,
		topK:     topK,
	}, nil
}

func loadIndex(manifestPath string) (Manifest, []indexedChunk, error) {
	manifestPath = strings.TrimSpace(manifestPath)
	if manifestPath == "" {
		return Manifest{}, nil, ErrManifestNotFound
	}

	raw, err := os.ReadFile(manifestPath)
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, nil, fmt.Errorf("%w: %s", ErrManifestNotFound, manifestPath)
	}
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return Manifest{}, nil, fmt.Errorf("decode manifest: %w", err)
	}
	if strings.TrimSpace(manifest.EmbeddingModel) == "" {
		return Manifest{}, nil, errors.New("manifest is missing embedding_model")
	}
	if strings.TrimSpace(manifest.IndexFile) == "" {
		return Manifest{}, nil, errors.New("manifest is missing index_file")
	}

	indexPath := manifest.IndexFile
	if !filepath.IsAbs(indexPath) {
		indexPath = filepath.Join(filepath.Dir(manifestPath), indexPath)
	}
	rawIndex, err := os.ReadFile(indexPath)
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("read index file: %w", err)
	}

	var chunks []indexedChunk
	if err := json.Unmarshal(rawIndex, &chunks); err != nil {
		return Manifest{}, nil, fmt.Errorf("decode index file: %w", err)
	}

	return manifest, chunks, nil
}

// Retrieve embeds the query and returns the topK most similar chunks,
// highest score first. topK <= 0 falls back to the configured default.
func (r *IndexRetriever) Retrieve(ctx context.Context, query string, topK int) ([]contractx.Document, error) {
	if topK <= 0 {
		topK = r.topK
	}
	if len(r.chunks) == 0 {
		return nil, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	docs := make([]contractx.Document, 0, len(r.chunks))
	for _, chunk := range r.chunks {
		docs = append(docs, contractx.Document{
			Content:  chunk.Content,
			Metadata: chunk.Metadata,
			Score:    cosineSimilarity(queryVec, chunk.Embedding),
		})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Score > docs[j].Score
	})
	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

// ManifestSummary exposes the manifest for startup logging.
func (r *IndexRetriever) ManifestSummary() Manifest {
	return r.manifest
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
