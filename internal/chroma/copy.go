package chroma

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize = 100
	DefaultPause     = 500 * time.Millisecond

	// readPageSize bounds each Get while the source is read
	readPageSize = 1000
)

// CopyOptions controls CopyCollection
type CopyOptions struct {
	BatchSize int
	Metadata  map[string]interface{}

	// Pause is the minimum gap between batch writes; negative disables it
	Pause time.Duration

	// OnRead is called once the whole source is in memory
	OnRead func(count int)
	// OnBatch is called before each batch is written (1-based batch index)
	OnBatch func(batch, batches, from, to int)
	// OnReplace is called when an existing target is deleted
	OnReplace func(name string)
}

// CopyResult summarises a finished copy
type CopyResult struct {
	Source      Collection
	Target      Collection
	SourceCount int
	TargetCount int
	Batches     int
}

// Verified reports whether the target ended up with as many records as the source
func (r *CopyResult) Verified() bool {
	return r.SourceCount == r.TargetCount
}

// CopyCollection reads every record of src, replaces dst with a fresh
// collection and writes the records into it in batches. The source is
// read completely before the target is touched.
func (c *Client) CopyCollection(ctx context.Context, src, dst string, opts CopyOptions) (*CopyResult, error) {
	if src == dst {
		return nil, fmt.Errorf("source and target are both %q", src)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Pause == 0 {
		opts.Pause = DefaultPause
	}

	source, err := c.GetCollection(ctx, src)
	if err != nil {
		return nil, err
	}
	sourceCount, err := c.Count(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", src, err)
	}

	records, err := c.readAll(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	if opts.OnRead != nil {
		opts.OnRead(records.Len())
	}

	if err := c.DeleteCollection(ctx, dst); err == nil {
		if opts.OnReplace != nil {
			opts.OnReplace(dst)
		}
	} else if !errors.Is(err, ErrCollectionNotFound) {
		return nil, fmt.Errorf("delete %s: %w", dst, err)
	}

	target, err := c.CreateCollection(ctx, dst, opts.Metadata)
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Pause > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Pause), 1)
	}

	total := records.Len()
	batches := (total + opts.BatchSize - 1) / opts.BatchSize
	for i := 0; i < batches; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		from := i * opts.BatchSize
		to := min(from+opts.BatchSize, total)
		if opts.OnBatch != nil {
			opts.OnBatch(i+1, batches, from, to)
		}
		if err := c.Add(ctx, target.ID, records.Slice(from, to)); err != nil {
			return nil, fmt.Errorf("batch %d/%d (records %d-%d): %w", i+1, batches, from+1, to, err)
		}
	}

	targetCount, err := c.Count(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", dst, err)
	}

	return &CopyResult{
		Source:      *source,
		Target:      *target,
		SourceCount: sourceCount,
		TargetCount: targetCount,
		Batches:     batches,
	}, nil
}

func (c *Client) readAll(ctx context.Context, collectionID string) (*Records, error) {
	all := &Records{}
	include := []Include{IncludeDocuments, IncludeEmbeddings, IncludeMetadatas}

	for offset := 0; ; offset += readPageSize {
		page, err := c.Get(ctx, collectionID, GetOptions{Include: include, Limit: readPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		all.Append(page)
		if page.Len() < readPageSize {
			return all, nil
		}
	}
}
