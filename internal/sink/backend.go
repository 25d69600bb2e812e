package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Log-Tools/logging-pipeline/internal/config"
	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Backend defines the document index operations the sink relies on
type Backend interface {
	Ping(ctx context.Context) error
	PutIndexTemplate(ctx context.Context, name string, body []byte) error
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, body []byte) error
	IndexDocument(ctx context.Context, index, id string, body []byte) error
	Search(ctx context.Context, index string, body []byte) ([]byte, error)
}

// OpenSearchBackend implements Backend with the opensearch-go client
type OpenSearchBackend struct {
	client *opensearch.Client
}

// NewOpenSearchBackend creates a client for the configured addresses
func NewOpenSearchBackend(cfg config.OpenSearchConfig) (*OpenSearchBackend, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}
	return &OpenSearchBackend{client: client}, nil
}

// Ping checks cluster health
func (b *OpenSearchBackend) Ping(ctx context.Context) error {
	res, err := b.client.Cluster.Health(b.client.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return responseError("cluster health", res)
}

// PutIndexTemplate installs or replaces a composable index template
func (b *OpenSearchBackend) PutIndexTemplate(ctx context.Context, name string, body []byte) error {
	res, err := b.client.Indices.PutIndexTemplate(name, bytes.NewReader(body),
		b.client.Indices.PutIndexTemplate.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return responseError("put index template "+name, res)
}

// IndexExists reports whether the index is present
func (b *OpenSearchBackend) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := b.client.Indices.Exists([]string{index}, b.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("index exists %s: unexpected status %d", index, res.StatusCode)
	}
}

// CreateIndex creates the index. An index created concurrently by someone
// else is not an error.
func (b *OpenSearchBackend) CreateIndex(ctx context.Context, index string, body []byte) error {
	res, err := b.client.Indices.Create(index,
		b.client.Indices.Create.WithBody(bytes.NewReader(body)),
		b.client.Indices.Create.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		msg := res.String()
		if res.StatusCode == http.StatusBadRequest && strings.Contains(msg, "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index %s: %s", index, msg)
	}
	return nil
}

// IndexDocument stores one document under the given id
func (b *OpenSearchBackend) IndexDocument(ctx context.Context, index, id string, body []byte) error {
	res, err := b.client.Index(index, bytes.NewReader(body),
		b.client.Index.WithDocumentID(id),
		b.client.Index.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return responseError("index document", res)
}

// Search runs a query DSL body against the index pattern and returns the raw response
func (b *OpenSearchBackend) Search(ctx context.Context, index string, body []byte) ([]byte, error) {
	res, err := b.client.Search(
		b.client.Search.WithContext(ctx),
		b.client.Search.WithIndex(index),
		b.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if err := responseError("search", res); err != nil {
		return nil, err
	}
	return io.ReadAll(res.Body)
}

func responseError(op string, res *opensearchapi.Response) error {
	if res.IsError() {
		return fmt.Errorf("%s: %s", op, res.String())
	}
	return nil
}
