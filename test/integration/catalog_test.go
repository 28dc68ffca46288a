// Package integration exercises the full aggregation pipeline against
// a real cluster. The tests are skipped unless K8SCHEMA_TEST_KUBECONFIG
// points at a kubeconfig for a disposable cluster (minikube, kind).
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/k8schema/k8schema/internal/core"
	"github.com/k8schema/k8schema/internal/kubeconfig"
	"github.com/k8schema/k8schema/internal/kubernetes"
)

func newLiveIndex(t *testing.T) *core.SchemaIndex {
	t.Helper()

	path := os.Getenv("K8SCHEMA_TEST_KUBECONFIG")
	if path == "" {
		t.Skip("K8SCHEMA_TEST_KUBECONFIG not set")
	}

	resolved, err := kubeconfig.NewResolver(path).Resolve()
	if err != nil {
		t.Fatalf("resolve kubeconfig: %v", err)
	}
	cc, err := resolved.Context(os.Getenv("K8SCHEMA_TEST_CONTEXT"))
	if err != nil {
		t.Fatalf("select context: %v", err)
	}

	client, err := kubernetes.NewClient(cc, kubernetes.RequestTimeout(30*time.Second))
	if err != nil {
		t.Fatalf("build client: %v", err)
	}

	return core.NewSchemaIndex(
		core.NewDiscoveryUseCase(kubernetes.NewDiscoveryRepo(client), core.DefaultRetryPolicy),
		core.NewSchemaUseCase(kubernetes.NewSchemaRepo(client), core.DefaultRetryPolicy, 8),
	)
}

func TestLiveClusterCatalog(t *testing.T) {
	ix := newLiveIndex(t)

	snap, err := ix.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("rebuild against live cluster: %v", err)
	}

	defs := snap.Schema.Definitions
	if len(defs) == 0 {
		t.Fatal("catalog is empty")
	}

	// Any conformant cluster serves the core workloads.
	deployment, ok := defs["io.k8s.api.apps.v1.Deployment"]
	if !ok {
		t.Fatal("io.k8s.api.apps.v1.Deployment missing from catalog")
	}

	props := deployment["properties"].(map[string]any)
	kindEnum := props["kind"].(map[string]any)["enum"].([]any)
	if len(kindEnum) != 1 || kindEnum[0] != "Deployment" {
		t.Fatalf("Deployment kind enum = %v", kindEnum)
	}
	apiVersionEnum := props["apiVersion"].(map[string]any)["enum"].([]any)
	if len(apiVersionEnum) != 1 || apiVersionEnum[0] != "apps/v1" {
		t.Fatalf("Deployment apiVersion enum = %v", apiVersionEnum)
	}
	if deployment["additionalProperties"] != false {
		t.Fatal("Deployment schema not closed")
	}

	for _, w := range snap.Schema.Warnings {
		t.Logf("cycle warning: %s: %s", w.Source, w.Message)
	}
}

func TestLiveClusterDeterminism(t *testing.T) {
	ix := newLiveIndex(t)

	marshal := func() []byte {
		snap, err := ix.Rebuild(context.Background())
		if err != nil {
			t.Fatalf("rebuild against live cluster: %v", err)
		}
		out, err := json.Marshal(snap.Schema.Definitions)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return out
	}

	if a, b := marshal(), marshal(); !bytes.Equal(a, b) {
		t.Fatal("two cycles over an idle cluster produced different catalogs")
	}
}
