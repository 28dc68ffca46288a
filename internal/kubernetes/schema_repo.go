package kubernetes

import (
	"context"

	"k8s.io/kube-openapi/pkg/handler3"

	"github.com/k8schema/k8schema/internal/core"
)

type schemaRepo struct {
	client *Client
}

func NewSchemaRepo(client *Client) core.SchemaRepo {
	return &schemaRepo{client: client}
}

var _ core.SchemaRepo = (*schemaRepo)(nil)

// Index fetches the OpenAPI v3 discovery document and returns the
// group-version paths with their server-relative fragment URLs. The
// URLs carry a content hash in the query string, which the client
// passes through untouched.
func (r *schemaRepo) Index(ctx context.Context) (map[string]string, error) {
	var disco handler3.OpenAPIV3Discovery
	if err := r.client.GetJSON(ctx, "/openapi/v3", &disco); err != nil {
		return nil, err
	}

	index := make(map[string]string, len(disco.Paths))
	for path, gv := range disco.Paths {
		index[path] = gv.ServerRelativeURL
	}
	return index, nil
}

// Fragment fetches one group-version schema document and returns its
// component schemas. The rest of the OpenAPI document (paths,
// operations) is irrelevant to the catalog and dropped here.
func (r *schemaRepo) Fragment(ctx context.Context, serverRelativeURL string) (map[string]map[string]any, error) {
	var doc struct {
		Components struct {
			Schemas map[string]map[string]any `json:"schemas"`
		} `json:"components"`
	}
	if err := r.client.GetJSON(ctx, serverRelativeURL, &doc); err != nil {
		return nil, err
	}
	return doc.Components.Schemas, nil
}
