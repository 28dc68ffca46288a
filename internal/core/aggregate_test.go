package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

type fakeSchemaRepo struct {
	index     map[string]string
	indexErr  error
	fragments map[string]map[string]map[string]any
	fragErrs  map[string]error
}

func (f *fakeSchemaRepo) Index(context.Context) (map[string]string, error) {
	return f.index, f.indexErr
}

func (f *fakeSchemaRepo) Fragment(_ context.Context, url string) (map[string]map[string]any, error) {
	if err := f.fragErrs[url]; err != nil {
		return nil, err
	}
	frag, ok := f.fragments[url]
	if !ok {
		return nil, fmt.Errorf("unexpected fragment URL %q", url)
	}
	return frag, nil
}

func testPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 1, Base: time.Millisecond, Max: time.Millisecond}
}

func podFragment() map[string]map[string]any {
	return map[string]map[string]any{
		"io.k8s.api.core.v1.Pod": {
			"type": "object",
			"x-kubernetes-group-version-kind": []any{
				map[string]any{"group": "", "version": "v1", "kind": "Pod"},
			},
			"properties": map[string]any{
				"kind":       map[string]any{"type": "string"},
				"apiVersion": map[string]any{"type": "string"},
				"spec": map[string]any{
					"allOf": []any{
						map[string]any{"$ref": "#/components/schemas/io.k8s.api.core.v1.PodSpec"},
					},
				},
			},
		},
	}
}

func deploymentFragment() map[string]map[string]any {
	return map[string]map[string]any{
		"io.k8s.api.apps.v1.Deployment": {
			"type": "object",
			"x-kubernetes-group-version-kind": []any{
				map[string]any{"group": "apps", "version": "v1", "kind": "Deployment"},
			},
			"properties": map[string]any{
				"kind":       map[string]any{"type": "string"},
				"apiVersion": map[string]any{"type": "string"},
			},
		},
	}
}

func TestAggregateMergesAndPostProcesses(t *testing.T) {
	t.Parallel()

	repo := &fakeSchemaRepo{
		index: map[string]string{
			"api/v1":       "/openapi/v3/api/v1?hash=a",
			"apis/apps/v1": "/openapi/v3/apis/apps/v1?hash=b",
		},
		fragments: map[string]map[string]map[string]any{
			"/openapi/v3/api/v1?hash=a":       podFragment(),
			"/openapi/v3/apis/apps/v1?hash=b": deploymentFragment(),
		},
	}
	uc := NewSchemaUseCase(repo, testPolicy(), 4)

	agg, err := uc.Aggregate(context.Background(), []ResourceDescriptor{
		{Group: "", Version: "v1", Kind: "Pod"},
		{Group: "apps", Version: "v1", Kind: "Deployment"},
	})
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}

	if len(agg.Definitions) != 2 {
		t.Fatalf("definitions = %d, want 2", len(agg.Definitions))
	}
	if len(agg.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none", agg.Warnings)
	}

	pod := agg.Definitions["io.k8s.api.core.v1.Pod"]
	props := pod["properties"].(map[string]any)

	kindEnum := props["kind"].(map[string]any)["enum"].([]any)
	if len(kindEnum) != 1 || kindEnum[0] != "Pod" {
		t.Fatalf("kind enum = %v, want [Pod]", kindEnum)
	}
	if got := props["apiVersion"].(map[string]any)["enum"].([]any)[0]; got != "v1" {
		t.Fatalf("apiVersion enum = %v, want v1", got)
	}
	if pod["additionalProperties"] != false {
		t.Fatal("definition not closed")
	}
	spec := props["spec"].(map[string]any)
	if got, want := spec["$ref"], "#/definitions/io.k8s.api.core.v1.PodSpec"; got != want {
		t.Fatalf("spec $ref = %v, want %v", got, want)
	}

	// Root catalog references every definition by canonical name.
	refs := agg.Root["oneOf"].([]any)
	if len(refs) != 2 {
		t.Fatalf("root oneOf = %d entries, want 2", len(refs))
	}
	first := refs[0].(map[string]any)["$ref"].(string)
	if !strings.HasPrefix(first, "_definitions.json#definitions/") {
		t.Fatalf("root ref %q not pointing at definitions document", first)
	}
}

func TestAggregateDeterministicOutput(t *testing.T) {
	t.Parallel()

	descriptors := []ResourceDescriptor{
		{Group: "apps", Version: "v1", Kind: "Deployment"},
		{Group: "", Version: "v1", Kind: "Pod"},
	}

	marshal := func() []byte {
		repo := &fakeSchemaRepo{
			index: map[string]string{
				"api/v1":       "/openapi/v3/api/v1",
				"apis/apps/v1": "/openapi/v3/apis/apps/v1",
			},
			fragments: map[string]map[string]map[string]any{
				"/openapi/v3/api/v1":       podFragment(),
				"/openapi/v3/apis/apps/v1": deploymentFragment(),
			},
		}
		uc := NewSchemaUseCase(repo, testPolicy(), 2)
		agg, err := uc.Aggregate(context.Background(), descriptors)
		if err != nil {
			t.Fatalf("Aggregate returned error: %v", err)
		}
		out, err := json.Marshal(map[string]any{
			"definitions": agg.Definitions,
			"root":        agg.Root,
		})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return out
	}

	if a, b := marshal(), marshal(); !bytes.Equal(a, b) {
		t.Fatal("two cycles over the same cluster state produced different catalogs")
	}
}

func TestAggregateWarnsOnMissingIndexEntry(t *testing.T) {
	t.Parallel()

	repo := &fakeSchemaRepo{
		index: map[string]string{
			"api/v1": "/openapi/v3/api/v1",
		},
		fragments: map[string]map[string]map[string]any{
			"/openapi/v3/api/v1": podFragment(),
		},
	}
	uc := NewSchemaUseCase(repo, testPolicy(), 2)

	agg, err := uc.Aggregate(context.Background(), []ResourceDescriptor{
		{Group: "", Version: "v1", Kind: "Pod"},
		{Group: "example.io", Version: "v1alpha1", Kind: "Widget"},
	})
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}

	if len(agg.Definitions) != 1 {
		t.Fatalf("definitions = %d, want 1", len(agg.Definitions))
	}
	if len(agg.Warnings) != 1 || agg.Warnings[0].Source != "apis/example.io/v1alpha1" {
		t.Fatalf("warnings = %v, want one for apis/example.io/v1alpha1", agg.Warnings)
	}
}

func TestAggregateSkipsFailedFragment(t *testing.T) {
	t.Parallel()

	repo := &fakeSchemaRepo{
		index: map[string]string{
			"api/v1":       "/openapi/v3/api/v1",
			"apis/apps/v1": "/openapi/v3/apis/apps/v1",
		},
		fragments: map[string]map[string]map[string]any{
			"/openapi/v3/api/v1": podFragment(),
		},
		fragErrs: map[string]error{
			"/openapi/v3/apis/apps/v1": &ErrAPI{Status: 404, URL: "/openapi/v3/apis/apps/v1"},
		},
	}
	uc := NewSchemaUseCase(repo, testPolicy(), 2)

	agg, err := uc.Aggregate(context.Background(), []ResourceDescriptor{
		{Group: "", Version: "v1", Kind: "Pod"},
		{Group: "apps", Version: "v1", Kind: "Deployment"},
	})
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}

	if _, ok := agg.Definitions["io.k8s.api.core.v1.Pod"]; !ok {
		t.Fatal("healthy fragment missing from catalog")
	}
	if _, ok := agg.Definitions["io.k8s.api.apps.v1.Deployment"]; ok {
		t.Fatal("failed fragment leaked into catalog")
	}
	if len(agg.Warnings) != 1 || agg.Warnings[0].Source != "apis/apps/v1" {
		t.Fatalf("warnings = %v, want one for apis/apps/v1", agg.Warnings)
	}
}

func TestAggregateFailsWhenIndexUnavailable(t *testing.T) {
	t.Parallel()

	repo := &fakeSchemaRepo{indexErr: &ErrAPI{Status: 403, URL: "/openapi/v3"}}
	uc := NewSchemaUseCase(repo, testPolicy(), 2)

	if _, err := uc.Aggregate(context.Background(), nil); err == nil {
		t.Fatal("expected error when the index endpoint is unavailable")
	}
}

func TestAggregateCollisionLaterGroupVersionWins(t *testing.T) {
	t.Parallel()

	older := map[string]map[string]any{
		"io.k8s.apimachinery.pkg.apis.meta.v1.Time": {"type": "string"},
	}
	newer := map[string]map[string]any{
		"io.k8s.apimachinery.pkg.apis.meta.v1.Time": {"type": "string", "format": "date-time"},
	}

	repo := &fakeSchemaRepo{
		index: map[string]string{
			"api/v1":       "/openapi/v3/api/v1",
			"apis/apps/v1": "/openapi/v3/apis/apps/v1",
		},
		fragments: map[string]map[string]map[string]any{
			"/openapi/v3/api/v1":       older,
			"/openapi/v3/apis/apps/v1": newer,
		},
	}
	uc := NewSchemaUseCase(repo, testPolicy(), 2)

	agg, err := uc.Aggregate(context.Background(), []ResourceDescriptor{
		{Group: "", Version: "v1", Kind: "Pod"},
		{Group: "apps", Version: "v1", Kind: "Deployment"},
	})
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}

	// "apis/apps/v1" sorts after "api/v1", so its body wins.
	got := agg.Definitions["io.k8s.apimachinery.pkg.apis.meta.v1.Time"]
	if got["format"] != "date-time" {
		t.Fatalf("collision kept %v, want the later group-version's body", got)
	}

	var found bool
	for _, w := range agg.Warnings {
		if w.Source == "io.k8s.apimachinery.pkg.apis.meta.v1.Time" {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v, want a collision warning for the shared definition", agg.Warnings)
	}
}

func TestAggregateIdenticalBodiesAreNotCollisions(t *testing.T) {
	t.Parallel()

	shared := func() map[string]map[string]any {
		return map[string]map[string]any{
			"io.k8s.apimachinery.pkg.apis.meta.v1.Time": {"type": "string", "format": "date-time"},
		}
	}
	repo := &fakeSchemaRepo{
		index: map[string]string{
			"api/v1":       "/openapi/v3/api/v1",
			"apis/apps/v1": "/openapi/v3/apis/apps/v1",
		},
		fragments: map[string]map[string]map[string]any{
			"/openapi/v3/api/v1":       shared(),
			"/openapi/v3/apis/apps/v1": shared(),
		},
	}
	uc := NewSchemaUseCase(repo, testPolicy(), 2)

	agg, err := uc.Aggregate(context.Background(), []ResourceDescriptor{
		{Group: "", Version: "v1", Kind: "Pod"},
		{Group: "apps", Version: "v1", Kind: "Deployment"},
	})
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if len(agg.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none for identical bodies", agg.Warnings)
	}
}

func TestIndexPath(t *testing.T) {
	t.Parallel()

	if got := indexPath(ResourceDescriptor{Version: "v1"}.GroupVersion()); got != "api/v1" {
		t.Fatalf("core group path = %q, want api/v1", got)
	}
	if got := indexPath(ResourceDescriptor{Group: "apps", Version: "v1"}.GroupVersion()); got != "apis/apps/v1" {
		t.Fatalf("named group path = %q, want apis/apps/v1", got)
	}
}
