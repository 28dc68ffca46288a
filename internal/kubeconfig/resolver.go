// Package kubeconfig resolves the standard Kubernetes client
// configuration file into ready-to-use cluster contexts. Parsing is
// delegated to client-go's clientcmd for format compatibility; this
// package adds reference resolution (contexts to clusters and users,
// file paths to literal bytes) and credential selection.
package kubeconfig

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"github.com/k8schema/k8schema/internal/core"
)

// ResolvedConfig holds every context of a kubeconfig with all
// references resolved, plus the file's current-context selection.
type ResolvedConfig struct {
	Contexts       []core.ClusterContext
	CurrentContext string
}

// Context returns the named context, or the current-context when name
// is empty.
func (c *ResolvedConfig) Context(name string) (core.ClusterContext, error) {
	if name == "" {
		name = c.CurrentContext
	}
	if name == "" {
		return core.ClusterContext{}, &core.ErrConfiguration{
			Section: "contexts",
			Reason:  "no context selected and current-context is unset",
		}
	}
	for _, cc := range c.Contexts {
		if cc.Name == name {
			return cc, nil
		}
	}
	return core.ClusterContext{}, &core.ErrConfiguration{
		Section: "contexts",
		Name:    name,
		Reason:  "context not found",
	}
}

// Resolver loads and resolves a kubeconfig file.
type Resolver struct {
	path string
	log  *slog.Logger
}

func NewResolver(path string) *Resolver {
	return &Resolver{
		path: path,
		log:  slog.Default().With("component", "kubeconfig"),
	}
}

// Resolve parses the file and resolves every context. A context that
// names a missing cluster or user, an unreadable CA file, or malformed
// credential material fails the whole resolution — broken access
// configuration is fatal, never silently skipped.
func (r *Resolver) Resolve() (*ResolvedConfig, error) {
	cfg, err := clientcmd.LoadFromFile(r.path)
	if err != nil {
		return nil, &core.ErrConfiguration{
			Section: "file",
			Name:    r.path,
			Reason:  "unreadable or malformed kubeconfig",
			Err:     err,
		}
	}

	names := make([]string, 0, len(cfg.Contexts))
	for name := range cfg.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)

	resolved := &ResolvedConfig{CurrentContext: cfg.CurrentContext}
	for _, name := range names {
		cc, err := r.resolveContext(cfg, name, cfg.Contexts[name])
		if err != nil {
			return nil, err
		}
		resolved.Contexts = append(resolved.Contexts, cc)
	}

	r.log.Debug("resolved kubeconfig",
		"path", r.path, "contexts", len(resolved.Contexts), "currentContext", resolved.CurrentContext)
	return resolved, nil
}

func (r *Resolver) resolveContext(cfg *clientcmdapi.Config, name string, ctx *clientcmdapi.Context) (core.ClusterContext, error) {
	cluster, ok := cfg.Clusters[ctx.Cluster]
	if !ok {
		return core.ClusterContext{}, &core.ErrConfiguration{
			Section: "clusters",
			Name:    ctx.Cluster,
			Reason:  fmt.Sprintf("referenced by context %q but not defined", name),
		}
	}
	user, ok := cfg.AuthInfos[ctx.AuthInfo]
	if !ok {
		return core.ClusterContext{}, &core.ErrConfiguration{
			Section: "users",
			Name:    ctx.AuthInfo,
			Reason:  fmt.Sprintf("referenced by context %q but not defined", name),
		}
	}

	anchor, err := resolveTrustAnchor(cluster)
	if err != nil {
		return core.ClusterContext{}, err
	}

	cred, err := resolveCredential(ctx.AuthInfo, user)
	if err != nil {
		return core.ClusterContext{}, err
	}

	return core.ClusterContext{
		Name:        name,
		Server:      cluster.Server,
		TrustAnchor: anchor,
		Credential:  cred,
	}, nil
}

// resolveTrustAnchor prefers inline CA data over a file reference.
// Neither present means the system trust store verifies the server.
func resolveTrustAnchor(cluster *clientcmdapi.Cluster) (core.TrustAnchor, error) {
	anchor := core.TrustAnchor{InsecureSkipVerify: cluster.InsecureSkipTLSVerify}

	switch {
	case len(cluster.CertificateAuthorityData) > 0:
		anchor.CABundle = cluster.CertificateAuthorityData
	case cluster.CertificateAuthority != "":
		data, err := os.ReadFile(cluster.CertificateAuthority)
		if err != nil {
			return core.TrustAnchor{}, &core.ErrConfiguration{
				Section: "clusters",
				Name:    cluster.Server,
				Reason:  fmt.Sprintf("certificate-authority file %q unreadable", cluster.CertificateAuthority),
				Err:     err,
			}
		}
		anchor.CABundle = data
	}

	return anchor, nil
}
