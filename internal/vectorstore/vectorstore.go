// Package vectorstore adapts a Qdrant collection to the needs of the
// gateway: point upsert with a text payload, top-k cosine search returning
// payload texts, full id scans for stale cleanup, and bulk deletion.
//
// Point ids are plain strings carried on the uuid variant of the Qdrant
// point id. The indexer's `<fileHash>_<chunkIndex>` scheme rides this
// unaltered; stale cleanup depends on being able to read those ids back
// verbatim.
package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"llm-privacy-gateway/internal/logger"
)

// scrollPageSize is the page size used when scanning all point ids.
const scrollPageSize = 100

// maxGrpcMessageSize allows large scroll pages and batched upserts through
// the client connection.
const maxGrpcMessageSize = 32 << 20

// Store wraps one Qdrant collection.
type Store struct {
	client     *qdrant.Client
	collection string
	log        zerolog.Logger
}

// New connects to Qdrant at rawURL (e.g. "http://localhost:6334") and
// ensures the collection exists with the given vector dimension and cosine
// distance.
func New(ctx context.Context, rawURL, collection string, dimension int) (*Store, error) {
	host, port, err := splitHostPort(rawURL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxGrpcMessageSize)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore.New: connect %s: %w", rawURL, err)
	}

	s := &Store{
		client:     client,
		collection: collection,
		log:        logger.Component("vectorstore"),
	}
	if err := s.ensureCollection(ctx, dimension); err != nil {
		client.Close() //nolint:errcheck // best-effort close on init failure
		return nil, err
	}
	return s, nil
}

func splitHostPort(rawURL string) (string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("vectorstore.New: parse url %q: %w", rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		host = rawURL
	}
	port := 6334
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("vectorstore.New: bad port in %q: %w", rawURL, err)
		}
	}
	return host, port, nil
}

func (s *Store) ensureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("vectorstore: check collection %q: %w", s.collection, err)
	}
	if exists {
		return nil
	}

	s.log.Info().Str("collection", s.collection).Int("dimension", dimension).Msg("creating collection")
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %q: %w", s.collection, err)
	}
	return nil
}

// Upsert stores one point. The payload carries the chunk text and a nested
// metadata object.
func (s *Store) Upsert(ctx context.Context, id, text string, vector []float32, metadata map[string]any) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(id),
		Vectors: qdrant.NewVectors(vector...),
		Payload: qdrant.NewValueMap(map[string]any{
			"text":     text,
			"metadata": metadata,
		}),
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("vectorstore.Upsert %s: %w", id, err)
	}
	return nil
}

// Search returns the payload texts of the top-k points by cosine similarity,
// best first.
func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]string, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore.Search: %w", err)
	}

	var texts []string
	for _, p := range points {
		if v, ok := p.Payload["text"]; ok {
			if text := v.GetStringValue(); text != "" {
				texts = append(texts, text)
			}
		}
	}
	return texts, nil
}

// ScrollAllIDs pages through the whole collection and returns every point
// id. The high-level client drops the scroll cursor, so this goes through
// the raw points service.
func (s *Store) ScrollAllIDs(ctx context.Context) ([]string, error) {
	var ids []string
	var offset *qdrant.PointId

	for {
		resp, err := s.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(false),
		})
		if err != nil {
			return nil, fmt.Errorf("vectorstore.ScrollAllIDs: %w", err)
		}

		for _, p := range resp.GetResult() {
			id := p.GetId()
			if id == nil {
				continue
			}
			if uuid := id.GetUuid(); uuid != "" {
				ids = append(ids, uuid)
			} else {
				ids = append(ids, strconv.FormatUint(id.GetNum(), 10))
			}
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			return ids, nil
		}
	}
}

// Delete removes the given points. A no-op on an empty list.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("vectorstore.Delete %d points: %w", len(ids), err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}
