// Package dump implements the one-shot mode: build the catalog once
// and write it to stdout.
package dump

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/k8schema/k8schema/internal/core"
)

// Dump builds the catalog once and writes the definitions document to
// out as indented JSON. Cycle warnings go to the log, not the output,
// so the document stays machine-consumable.
type Dump struct {
	index *core.SchemaIndex
	out   io.Writer
	log   *slog.Logger
}

func NewDump(index *core.SchemaIndex) *Dump {
	return &Dump{
		index: index,
		out:   os.Stdout,
		log:   slog.Default().With("component", "dump"),
	}
}

func (d *Dump) Run(ctx context.Context) error {
	snap, err := d.index.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}

	for _, w := range snap.Schema.Warnings {
		d.log.Warn("cycle warning", "source", w.Source, "message", w.Message)
	}

	enc := json.NewEncoder(d.out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"definitions": snap.Schema.Definitions,
	})
}
