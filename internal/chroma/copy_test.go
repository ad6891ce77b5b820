package chroma_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/psantana5/chromactl/internal/chroma"
	"github.com/psantana5/chromactl/internal/chroma/chromatest"
)

func TestCopyCollection(t *testing.T) {
	srv := chromatest.NewServer(t)
	client := srv.Client()
	srv.Seed("src", map[string]interface{}{"origin": "test"}, 250)

	var read int
	var batches [][2]int
	res, err := client.CopyCollection(context.Background(), "src", "dst", chroma.CopyOptions{
		BatchSize: 100,
		Metadata:  map[string]interface{}{"description": "copy"},
		Pause:     -1,
		OnRead:    func(n int) { read = n },
		OnBatch: func(batch, total, from, to int) {
			batches = append(batches, [2]int{from, to})
		},
	})
	if err != nil {
		t.Fatalf("CopyCollection failed: %v", err)
	}

	if read != 250 {
		t.Errorf("Expected 250 records read, got %d", read)
	}
	expected := [][2]int{{0, 100}, {100, 200}, {200, 250}}
	if !reflect.DeepEqual(batches, expected) {
		t.Errorf("Expected batches %v, got %v", expected, batches)
	}
	if calls := srv.AddCalls(); !reflect.DeepEqual(calls, []int{100, 100, 50}) {
		t.Errorf("Expected add sizes [100 100 50], got %v", calls)
	}
	if res.Batches != 3 || res.SourceCount != 250 || res.TargetCount != 250 {
		t.Errorf("Unexpected result: %+v", res)
	}
	if !res.Verified() {
		t.Error("Expected copy to verify")
	}
	if res.Target.Metadata["description"] != "copy" {
		t.Errorf("Expected target metadata description=copy, got %v", res.Target.Metadata)
	}

	dst := srv.Records("dst")
	if dst == nil {
		t.Fatal("Expected dst collection to exist")
	}
	if *dst.Documents[249] != "document 249" || dst.Embeddings[10][0] != 10 {
		t.Error("Expected records to be copied in order with embeddings")
	}
}

func TestCopyCollectionReadsPastOnePage(t *testing.T) {
	srv := chromatest.NewServer(t)
	client := srv.Client()
	srv.Seed("big", nil, chroma.ReadPageSize+1)

	res, err := client.CopyCollection(context.Background(), "big", "big_copy", chroma.CopyOptions{
		BatchSize: 500,
		Pause:     -1,
	})
	if err != nil {
		t.Fatalf("CopyCollection failed: %v", err)
	}
	if res.TargetCount != chroma.ReadPageSize+1 {
		t.Errorf("Expected %d records, got %d", chroma.ReadPageSize+1, res.TargetCount)
	}
}

func TestCopyCollectionReplacesTarget(t *testing.T) {
	srv := chromatest.NewServer(t)
	client := srv.Client()
	srv.Seed("src", nil, 3)
	srv.Seed("dst", nil, 10)

	var replaced string
	res, err := client.CopyCollection(context.Background(), "src", "dst", chroma.CopyOptions{
		Pause:     -1,
		OnReplace: func(name string) { replaced = name },
	})
	if err != nil {
		t.Fatalf("CopyCollection failed: %v", err)
	}
	if replaced != "dst" {
		t.Errorf("Expected OnReplace for dst, got %q", replaced)
	}
	if res.TargetCount != 3 {
		t.Errorf("Expected old records to be gone, target has %d", res.TargetCount)
	}
}

func TestCopyCollectionEmptySource(t *testing.T) {
	srv := chromatest.NewServer(t)
	client := srv.Client()
	srv.Seed("empty", nil, 0)

	res, err := client.CopyCollection(context.Background(), "empty", "dst", chroma.CopyOptions{Pause: -1})
	if err != nil {
		t.Fatalf("CopyCollection failed: %v", err)
	}
	if res.Batches != 0 || len(srv.AddCalls()) != 0 {
		t.Errorf("Expected no batches, got %d (add calls %v)", res.Batches, srv.AddCalls())
	}
	if _, ok := srv.Collection("dst"); !ok {
		t.Error("Expected empty target to be created")
	}
}

func TestCopyCollectionErrors(t *testing.T) {
	t.Run("same name", func(t *testing.T) {
		client := chromatest.NewServer(t).Client()
		if _, err := client.CopyCollection(context.Background(), "a", "a", chroma.CopyOptions{}); err == nil {
			t.Error("Expected error copying a collection onto itself")
		}
	})

	t.Run("missing source leaves target alone", func(t *testing.T) {
		srv := chromatest.NewServer(t)
		client := srv.Client()
		srv.Seed("dst", nil, 2)

		_, err := client.CopyCollection(context.Background(), "nope", "dst", chroma.CopyOptions{Pause: -1})
		if !errors.Is(err, chroma.ErrCollectionNotFound) {
			t.Errorf("Expected ErrCollectionNotFound, got %v", err)
		}
		if deleted := srv.Deleted(); len(deleted) != 0 {
			t.Errorf("Expected target to be untouched, deleted %v", deleted)
		}
	})

	t.Run("failed batch", func(t *testing.T) {
		srv := chromatest.NewServer(t)
		client := srv.Client()
		srv.Seed("src", nil, 30)
		srv.FailAddAt(2)

		_, err := client.CopyCollection(context.Background(), "src", "dst", chroma.CopyOptions{BatchSize: 10, Pause: -1})
		if err == nil {
			t.Fatal("Expected error from failed batch")
		}
		var apiErr *chroma.APIError
		if !errors.As(err, &apiErr) {
			t.Errorf("Expected wrapped *APIError, got %v", err)
		}
		if calls := srv.AddCalls(); len(calls) != 2 {
			t.Errorf("Expected copy to stop after the failed batch, got %d add calls", len(calls))
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		srv := chromatest.NewServer(t)
		client := srv.Client()
		srv.Seed("src", nil, 5)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := client.CopyCollection(ctx, "src", "dst", chroma.CopyOptions{}); err == nil {
			t.Error("Expected error for cancelled context")
		}
	})
}
