package core

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// SchemaRepo abstracts the cluster's OpenAPI v3 endpoints.
type SchemaRepo interface {
	// Index returns the OpenAPI v3 discovery document: a map from
	// group-version path ("api/v1", "apis/apps/v1") to the
	// server-relative URL of that group-version's schema fragment.
	Index(ctx context.Context) (map[string]string, error)
	// Fragment fetches one group-version fragment and returns its
	// component schemas keyed by canonical definition name.
	Fragment(ctx context.Context, serverRelativeURL string) (map[string]map[string]any, error)
}

// FetchConcurrency bounds the number of fragment fetches in flight at
// once. A distinct type so the DI layer can inject it unambiguously.
type FetchConcurrency int

// AggregatedSchema is the merged catalog: every definition from every
// reachable group-version under its canonical name, plus the root
// document referencing all of them.
type AggregatedSchema struct {
	Definitions map[string]map[string]any
	Root        map[string]any
	Warnings    []Warning
}

// SchemaUseCase fetches per-group-version OpenAPI v3 fragments and
// merges them into a single catalog.
type SchemaUseCase struct {
	repo        SchemaRepo
	retry       RetryPolicy
	concurrency int
	log         *slog.Logger
}

func NewSchemaUseCase(repo SchemaRepo, retry RetryPolicy, concurrency FetchConcurrency) *SchemaUseCase {
	c := int(concurrency)
	if c < 1 {
		c = 1
	}
	return &SchemaUseCase{
		repo:        repo,
		retry:       retry,
		concurrency: c,
		log:         slog.Default().With("component", "aggregator"),
	}
}

// indexPath maps a group-version to its key in the OpenAPI v3
// discovery document. The legacy core group lives under "api/".
func indexPath(gv schema.GroupVersion) string {
	if gv.Group == "" {
		return "api/" + gv.Version
	}
	return "apis/" + gv.Group + "/" + gv.Version
}

// Aggregate fetches the fragment of every group-version present among
// descriptors exactly once (fragments are per group-version, not per
// kind) and merges them. Fetches run concurrently up to the configured
// limit, but merging walks group-versions in sorted order so the
// output is deterministic for a fixed cluster state regardless of
// completion order. A group-version whose fragment cannot be fetched
// is skipped with a warning; the rest of the catalog is still
// produced.
func (uc *SchemaUseCase) Aggregate(ctx context.Context, descriptors []ResourceDescriptor) (*AggregatedSchema, error) {
	var index map[string]string
	err := uc.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		index, err = uc.repo.Index(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch OpenAPI v3 index: %w", err)
	}

	var warnings []Warning

	// Distinct group-version paths, sorted for deterministic merge
	// order. Later-sorted group-versions win collisions.
	seen := map[string]struct{}{}
	var paths []string
	for _, d := range descriptors {
		p := indexPath(d.GroupVersion())
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var fetchable []string
	for _, p := range paths {
		if _, ok := index[p]; !ok {
			uc.log.Warn("group-version missing from OpenAPI v3 index", "groupVersion", p)
			warnings = append(warnings, Warning{
				Source:  p,
				Message: "not present in OpenAPI v3 index",
			})
			continue
		}
		fetchable = append(fetchable, p)
	}

	fragments := make([]map[string]map[string]any, len(fetchable))
	fetchErrs := make([]error, len(fetchable))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(uc.concurrency)
	for i, p := range fetchable {
		eg.Go(func() error {
			err := uc.retry.Do(egCtx, func(ctx context.Context) error {
				frag, err := uc.repo.Fragment(ctx, index[p])
				if err != nil {
					return err
				}
				fragments[i] = frag
				return nil
			})
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				// Partial availability: record and carry on.
				fetchErrs[i] = err
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	definitions := map[string]map[string]any{}
	sources := map[string]string{}
	for i, p := range fetchable {
		if fetchErrs[i] != nil {
			uc.log.Warn("skipping group-version fragment", "groupVersion", p, "error", fetchErrs[i])
			warnings = append(warnings, Warning{
				Source:  p,
				Message: fmt.Sprintf("fragment fetch failed: %v", fetchErrs[i]),
			})
			continue
		}

		frag := fragments[i]
		names := make([]string, 0, len(frag))
		for name := range frag {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			body := frag[name]
			if existing, ok := definitions[name]; ok && !reflect.DeepEqual(existing, body) {
				uc.log.Warn("definition collision, keeping later body",
					"definition", name, "previous", sources[name], "current", p)
				warnings = append(warnings, Warning{
					Source:  name,
					Message: fmt.Sprintf("collision between %s and %s, kept %s", sources[name], p, p),
				})
			}
			definitions[name] = body
			sources[name] = p
		}
	}

	names := make([]string, 0, len(definitions))
	for name := range definitions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := definitions[name]
		fixKindEnums(def)
		markClosed(def)
		cleanupSchema(def)
	}

	uc.log.Info("aggregated schemas", "definitions", len(definitions), "warnings", len(warnings))

	return &AggregatedSchema{
		Definitions: definitions,
		Root:        rootDocument(names),
		Warnings:    warnings,
	}, nil
}

// rootDocument builds the all.json catalog: a oneOf referencing every
// canonical definition, in name order.
func rootDocument(names []string) map[string]any {
	refs := make([]any, 0, len(names))
	for _, name := range names {
		refs = append(refs, map[string]any{
			"$ref": "_definitions.json#definitions/" + name,
		})
	}
	return map[string]any{"oneOf": refs}
}
