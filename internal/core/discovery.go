package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/version"
)

// ResourceDescriptor identifies one resource kind exposed by the
// cluster, uniquely keyed by (group, version, kind).
type ResourceDescriptor struct {
	Group      string
	Version    string
	Kind       string
	Plural     string
	Namespaced bool
}

// GroupVersion returns the descriptor's group-version pair.
func (d ResourceDescriptor) GroupVersion() schema.GroupVersion {
	return schema.GroupVersion{Group: d.Group, Version: d.Version}
}

// Warning records a non-fatal defect observed during a discovery or
// aggregation cycle. Warnings are carried on the aggregated result so
// that serving code can surface them in diagnostics.
type Warning struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// DiscoveryRepo abstracts the cluster's discovery endpoints. The
// implementation merges the legacy core group (served under /api) with
// the named groups under /apis.
type DiscoveryRepo interface {
	// GroupVersions lists every group-version the cluster serves,
	// including the core group (empty Group).
	GroupVersions(ctx context.Context) ([]schema.GroupVersion, error)
	// Resources lists the resources served under one group-version.
	Resources(ctx context.Context, gv schema.GroupVersion) (*metav1.APIResourceList, error)
	// Version returns the API server's build version.
	Version(ctx context.Context) (*version.Info, error)
}

// DiscoveryUseCase enumerates every (group, version, kind) triple the
// cluster exposes, built-in and CRD alike.
type DiscoveryUseCase struct {
	repo  DiscoveryRepo
	retry RetryPolicy
	log   *slog.Logger
}

func NewDiscoveryUseCase(repo DiscoveryRepo, retry RetryPolicy) *DiscoveryUseCase {
	return &DiscoveryUseCase{
		repo:  repo,
		retry: retry,
		log:   slog.Default().With("component", "discovery"),
	}
}

// ServerVersion probes the API server version.
func (uc *DiscoveryUseCase) ServerVersion(ctx context.Context) (*version.Info, error) {
	return uc.repo.Version(ctx)
}

// Discover walks the discovery graph: root group list, then the
// resource list of each group-version. A group-version that fails to
// respond (a down aggregated API server, typically) is skipped with a
// warning so that partial cluster availability never blocks the rest
// of the catalog. The result is deduplicated and sorted by
// (group, version, kind).
func (uc *DiscoveryUseCase) Discover(ctx context.Context) ([]ResourceDescriptor, []Warning, error) {
	var gvs []schema.GroupVersion
	err := uc.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		gvs, err = uc.repo.GroupVersions(ctx)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list API groups: %w", err)
	}

	var (
		warnings []Warning
		seen     = map[ResourceDescriptor]struct{}{}
		out      []ResourceDescriptor
	)
	for _, gv := range gvs {
		var list *metav1.APIResourceList
		err := uc.retry.Do(ctx, func(ctx context.Context) error {
			var err error
			list, err = uc.repo.Resources(ctx, gv)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			uc.log.Warn("skipping unavailable group-version", "groupVersion", gv.String(), "error", err)
			warnings = append(warnings, Warning{
				Source:  gv.String(),
				Message: fmt.Sprintf("discovery failed: %v", err),
			})
			continue
		}

		for i := range list.APIResources {
			res := &list.APIResources[i]
			// Subresources (pods/status, deployments/scale) carry no
			// schema of their own.
			if strings.Contains(res.Name, "/") || res.Kind == "" {
				continue
			}
			d := ResourceDescriptor{
				Group:      gv.Group,
				Version:    gv.Version,
				Kind:       res.Kind,
				Plural:     res.Name,
				Namespaced: res.Namespaced,
			}
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		return a.Kind < b.Kind
	})

	return out, warnings, nil
}
