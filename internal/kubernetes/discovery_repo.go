package kubernetes

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/version"

	"github.com/k8schema/k8schema/internal/core"
)

type discoveryRepo struct {
	client *Client
}

func NewDiscoveryRepo(client *Client) core.DiscoveryRepo {
	return &discoveryRepo{client: client}
}

var _ core.DiscoveryRepo = (*discoveryRepo)(nil)

// GroupVersions merges the legacy core group (served under /api) with
// the named groups under /apis.
func (r *discoveryRepo) GroupVersions(ctx context.Context) ([]schema.GroupVersion, error) {
	var out []schema.GroupVersion

	var legacy metav1.APIVersions
	if err := r.client.GetJSON(ctx, "/api", &legacy); err != nil {
		return nil, err
	}
	for _, v := range legacy.Versions {
		out = append(out, schema.GroupVersion{Version: v})
	}

	var groups metav1.APIGroupList
	if err := r.client.GetJSON(ctx, "/apis", &groups); err != nil {
		return nil, err
	}
	for i := range groups.Groups {
		group := &groups.Groups[i]
		for _, v := range group.Versions {
			out = append(out, schema.GroupVersion{Group: group.Name, Version: v.Version})
		}
	}

	return out, nil
}

func (r *discoveryRepo) Resources(ctx context.Context, gv schema.GroupVersion) (*metav1.APIResourceList, error) {
	path := "/apis/" + gv.Group + "/" + gv.Version
	if gv.Group == "" {
		path = "/api/" + gv.Version
	}

	var list metav1.APIResourceList
	if err := r.client.GetJSON(ctx, path, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (r *discoveryRepo) Version(ctx context.Context) (*version.Info, error) {
	var info version.Info
	if err := r.client.GetJSON(ctx, "/version", &info); err != nil {
		return nil, err
	}
	return &info, nil
}
