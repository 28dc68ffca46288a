package kubernetes

import "github.com/google/wire"

// ProviderSet is the Wire provider set for cluster-facing
// infrastructure.
var ProviderSet = wire.NewSet(
	NewClient,
	NewDiscoveryRepo,
	NewSchemaRepo,
)
