package core

import (
	"fmt"
	"strings"
)

// The merged definitions are post-processed to match what YAML/Helm
// language servers expect from a kubernetes-json-schema style catalog:
// kind/apiVersion enums, closed objects, and refs pointing at the
// merged document's definitions namespace.

// fixKindEnums constrains the kind and apiVersion properties of a
// definition to the values declared in its
// x-kubernetes-group-version-kind extension, so that editors can
// complete and validate them.
func fixKindEnums(def map[string]any) {
	gvks, ok := def["x-kubernetes-group-version-kind"].([]any)
	if !ok {
		return
	}
	props, ok := def["properties"].(map[string]any)
	if !ok {
		return
	}

	if kindProp, ok := props["kind"].(map[string]any); ok {
		var kinds []any
		seen := map[string]struct{}{}
		for _, e := range gvks {
			gvk, ok := e.(map[string]any)
			if !ok {
				continue
			}
			kind, _ := gvk["kind"].(string)
			if kind == "" {
				continue
			}
			if _, dup := seen[kind]; dup {
				continue
			}
			seen[kind] = struct{}{}
			kinds = append(kinds, kind)
		}
		kindProp["enum"] = kinds
	}

	if versionProp, ok := props["apiVersion"].(map[string]any); ok {
		var versions []any
		seen := map[string]struct{}{}
		for _, e := range gvks {
			gvk, ok := e.(map[string]any)
			if !ok {
				continue
			}
			group, _ := gvk["group"].(string)
			version, _ := gvk["version"].(string)
			if version == "" {
				continue
			}
			apiVersion := version
			if group != "" {
				apiVersion = group + "/" + version
			}
			if _, dup := seen[apiVersion]; dup {
				continue
			}
			seen[apiVersion] = struct{}{}
			versions = append(versions, apiVersion)
		}
		versionProp["enum"] = versions
	}
}

// markClosed rejects unknown fields unless the type explicitly opts
// into preserving them (CRDs with x-kubernetes-preserve-unknown-fields).
func markClosed(def map[string]any) {
	if _, ok := def["x-kubernetes-preserve-unknown-fields"]; !ok {
		def["additionalProperties"] = false
	}
}

// cleanupSchema recursively normalises a schema node:
//   - drops "default" so editors don't offer it as a completion
//   - flattens a single-ref allOf into a plain $ref
//   - rewrites component refs into the merged definitions namespace
//   - deduplicates enum values, keeping first-occurrence order
func cleanupSchema(v map[string]any) {
	delete(v, "default")

	if allOf, ok := v["allOf"].([]any); ok && len(allOf) == 1 {
		if m, ok := allOf[0].(map[string]any); ok && len(m) == 1 {
			if ref, ok := m["$ref"].(string); ok {
				v["$ref"] = ref
				delete(v, "allOf")
			}
		}
	}

	if ref, ok := v["$ref"].(string); ok {
		v["$ref"] = strings.ReplaceAll(ref, "#/components/schemas/", "#/definitions/")
	}

	if enum, ok := v["enum"].([]any); ok {
		v["enum"] = dedupeValues(enum)
	}

	for _, child := range v {
		switch c := child.(type) {
		case map[string]any:
			cleanupSchema(c)
		case []any:
			for _, e := range c {
				if m, ok := e.(map[string]any); ok {
					cleanupSchema(m)
				}
			}
		}
	}
}

// dedupeValues removes duplicates while preserving first-occurrence
// order, so repeated cycles produce identical output.
func dedupeValues(values []any) []any {
	seen := map[string]struct{}{}
	out := make([]any, 0, len(values))
	for _, val := range values {
		key := fmt.Sprintf("%T:%v", val, val)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, val)
	}
	return out
}
