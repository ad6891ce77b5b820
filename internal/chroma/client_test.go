package chroma_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/psantana5/chromactl/internal/chroma"
	"github.com/psantana5/chromactl/internal/chroma/chromatest"
)

func TestHeartbeatAndVersion(t *testing.T) {
	client := chromatest.NewServer(t).Client()
	ctx := context.Background()

	nanos, err := client.Heartbeat(ctx)
	if err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}
	if nanos != chromatest.HeartbeatNanos {
		t.Errorf("Expected heartbeat %d, got %d", chromatest.HeartbeatNanos, nanos)
	}

	version, err := client.Version(ctx)
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if version != chromatest.Version {
		t.Errorf("Expected version %s, got %q", chromatest.Version, version)
	}
}

func TestCollectionLifecycle(t *testing.T) {
	srv := chromatest.NewServer(t)
	client := srv.Client()
	ctx := context.Background()

	collections, err := client.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections failed: %v", err)
	}
	if len(collections) != 0 {
		t.Fatalf("Expected no collections, got %d", len(collections))
	}

	created, err := client.CreateCollection(ctx, "docs", map[string]interface{}{"description": "test"})
	if err != nil {
		t.Fatalf("CreateCollection failed: %v", err)
	}
	if created.Name != "docs" || created.ID == "" {
		t.Errorf("Unexpected created collection: %+v", created)
	}

	got, err := client.GetCollection(ctx, "docs")
	if err != nil {
		t.Fatalf("GetCollection failed: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("Expected ID %s, got %s", created.ID, got.ID)
	}
	if got.Metadata["description"] != "test" {
		t.Errorf("Expected metadata description=test, got %v", got.Metadata)
	}

	if _, err := client.CreateCollection(ctx, "docs", nil); err == nil {
		t.Error("Expected error creating a duplicate collection")
	}

	if err := client.DeleteCollection(ctx, "docs"); err != nil {
		t.Fatalf("DeleteCollection failed: %v", err)
	}
	if deleted := srv.Deleted(); len(deleted) != 1 || deleted[0] != "docs" {
		t.Errorf("Expected docs to be deleted, got %v", deleted)
	}
}

func TestGetCollectionNotFound(t *testing.T) {
	client := chromatest.NewServer(t).Client()

	_, err := client.GetCollection(context.Background(), "missing")
	if !errors.Is(err, chroma.ErrCollectionNotFound) {
		t.Fatalf("Expected ErrCollectionNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("Expected error to name the collection, got %q", err)
	}

	err = client.DeleteCollection(context.Background(), "missing")
	if !errors.Is(err, chroma.ErrCollectionNotFound) {
		t.Errorf("Expected ErrCollectionNotFound from delete, got %v", err)
	}
}

func TestLegacyNotFoundBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"ValueError('Collection old does not exist.')"}`))
	}))
	defer srv.Close()

	_, err := chroma.NewClient(srv.URL).GetCollection(context.Background(), "old")
	if !errors.Is(err, chroma.ErrCollectionNotFound) {
		t.Errorf("Expected ErrCollectionNotFound, got %v", err)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("warming up\n"))
	}))
	defer srv.Close()

	_, err := chroma.NewClient(srv.URL).Heartbeat(context.Background())
	var apiErr *chroma.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", apiErr.StatusCode)
	}
	if apiErr.Method != http.MethodGet || apiErr.Path != "/api/v2/heartbeat" {
		t.Errorf("Unexpected request in error: %s %s", apiErr.Method, apiErr.Path)
	}
	if !strings.HasSuffix(apiErr.Error(), ": warming up") {
		t.Errorf("Expected trimmed body in message, got %q", apiErr.Error())
	}
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := chroma.NewClient(url).Heartbeat(context.Background())
	if err == nil {
		t.Fatal("Expected error for closed server")
	}
	var apiErr *chroma.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("Expected transport error, got API error %v", apiErr)
	}
}

func TestTenantPaths(t *testing.T) {
	srv := chromatest.NewServer(t)

	tests := []struct {
		name     string
		opts     []chroma.Option
		tenant   string
		database string
	}{
		{
			name:     "defaults",
			tenant:   chroma.DefaultTenant,
			database: chroma.DefaultDatabase,
		},
		{
			name:     "custom",
			opts:     []chroma.Option{chroma.WithTenant("acme", "search")},
			tenant:   "acme",
			database: "search",
		},
		{
			name:     "empty values keep defaults",
			opts:     []chroma.Option{chroma.WithTenant("", "")},
			tenant:   chroma.DefaultTenant,
			database: chroma.DefaultDatabase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := chroma.NewClient(srv.URL+"/", tt.opts...)
			if _, err := client.ListCollections(context.Background()); err != nil {
				t.Fatalf("ListCollections failed: %v", err)
			}
			tenant, database := srv.LastTenant()
			if tenant != tt.tenant || database != tt.database {
				t.Errorf("Expected %s/%s, got %s/%s", tt.tenant, tt.database, tenant, database)
			}
		})
	}
}

func TestGetAndAddRecords(t *testing.T) {
	srv := chromatest.NewServer(t)
	client := srv.Client()
	ctx := context.Background()
	srv.Seed("src", nil, 5)
	src, err := client.GetCollection(ctx, "src")
	if err != nil {
		t.Fatalf("GetCollection failed: %v", err)
	}

	page, err := client.Get(ctx, src.ID, chroma.GetOptions{
		Include: []chroma.Include{chroma.IncludeDocuments, chroma.IncludeMetadatas},
		Limit:   2,
		Offset:  1,
	})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if page.Len() != 2 || page.IDs[0] != "id1" || page.IDs[1] != "id2" {
		t.Fatalf("Expected ids [id1 id2], got %v", page.IDs)
	}
	if page.Embeddings != nil {
		t.Errorf("Expected embeddings to be omitted, got %v", page.Embeddings)
	}
	if len(page.Documents) != 2 || *page.Documents[0] != "document 1" {
		t.Errorf("Unexpected documents: %v", page.Documents)
	}

	if err := client.Add(ctx, src.ID, page); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	count, err := client.Count(ctx, src.ID)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 7 {
		t.Errorf("Expected count 7, got %d", count)
	}
}

func TestRecordsSliceAndAppend(t *testing.T) {
	doc := "a"
	r := &chroma.Records{
		IDs:       []string{"1", "2", "3"},
		Documents: []*string{&doc, nil, &doc},
	}

	s := r.Slice(1, 3)
	if s.Len() != 2 || s.IDs[0] != "2" {
		t.Errorf("Unexpected slice: %v", s.IDs)
	}
	if s.Documents[0] != nil {
		t.Error("Expected nil document to be preserved")
	}
	if s.Embeddings != nil || s.Metadatas != nil {
		t.Error("Expected absent fields to stay nil")
	}

	var all chroma.Records
	all.Append(s)
	all.Append(r.Slice(0, 1))
	if all.Len() != 3 || all.IDs[2] != "1" {
		t.Errorf("Unexpected appended ids: %v", all.IDs)
	}
	if len(all.Documents) != 3 {
		t.Errorf("Expected 3 documents, got %d", len(all.Documents))
	}
}
