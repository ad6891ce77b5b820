package chroma

import (
	"context"
	"net/http"
)

// Include names a record field returned by Get
type Include string

const (
	IncludeDocuments  Include = "documents"
	IncludeEmbeddings Include = "embeddings"
	IncludeMetadatas  Include = "metadatas"
)

// Records holds parallel slices keyed by position in IDs. Optional
// fields are nil when not requested; Documents entries may be nil.
type Records struct {
	IDs        []string                 `json:"ids"`
	Documents  []*string                `json:"documents,omitempty"`
	Embeddings [][]float32              `json:"embeddings,omitempty"`
	Metadatas  []map[string]interface{} `json:"metadatas,omitempty"`
}

// Len is the number of records
func (r *Records) Len() int {
	return len(r.IDs)
}

// Slice returns records [from, to) sharing the underlying arrays
func (r *Records) Slice(from, to int) *Records {
	out := &Records{IDs: r.IDs[from:to]}
	if r.Documents != nil {
		out.Documents = r.Documents[from:to]
	}
	if r.Embeddings != nil {
		out.Embeddings = r.Embeddings[from:to]
	}
	if r.Metadatas != nil {
		out.Metadatas = r.Metadatas[from:to]
	}
	return out
}

// Append adds other's records after r's
func (r *Records) Append(other *Records) {
	r.IDs = append(r.IDs, other.IDs...)
	if other.Documents != nil {
		r.Documents = append(r.Documents, other.Documents...)
	}
	if other.Embeddings != nil {
		r.Embeddings = append(r.Embeddings, other.Embeddings...)
	}
	if other.Metadatas != nil {
		r.Metadatas = append(r.Metadatas, other.Metadatas...)
	}
}

// GetOptions selects a page of records
type GetOptions struct {
	Include []Include
	Limit   int
	Offset  int
}

// Get reads records from a collection
func (c *Client) Get(ctx context.Context, collectionID string, opts GetOptions) (*Records, error) {
	body := map[string]interface{}{
		"include": opts.Include,
	}
	if opts.Include == nil {
		body["include"] = []Include{}
	}
	if opts.Limit > 0 {
		body["limit"] = opts.Limit
	}
	if opts.Offset > 0 {
		body["offset"] = opts.Offset
	}

	var records Records
	if err := c.do(ctx, http.MethodPost, c.collectionPath(collectionID)+"/get", body, &records); err != nil {
		return nil, err
	}
	return &records, nil
}

// Add inserts records into a collection
func (c *Client) Add(ctx context.Context, collectionID string, records *Records) error {
	return c.do(ctx, http.MethodPost, c.collectionPath(collectionID)+"/add", records, nil)
}
