package framework

import (
	"context"
	"fmt"
	"sort"

	"github.com/ipfs-shipyard/ipfshttp-tests/client"

	"github.com/hashicorp/go-multierror"
)

// Pinner is the part of the client's pin API that CleanupPins needs. *client.PinService
// implements it.
type Pinner interface {
	Ls(ctx context.Context, typ client.PinType) (client.PinLsResult, error)
	Rm(ctx context.Context, path string) ([]string, error)
}

// CleanupPins snapshots the recursively pinned identifiers now, and when the test ends,
// unpins every recursive pin that was not in the snapshot. The test's outcome does not matter;
// the cleanup always runs.
//
// It costs one pin listing now, and one listing plus one removal per new pin afterward.
// Removal failures do not stop the cleanup; they are reported together as a test failure.
func CleanupPins(t TB, pins Pinner) {
	t.Helper()
	ctx := context.Background()

	before, err := pins.Ls(ctx, client.PinTypeRecursive)
	if err != nil {
		t.Fatalf("listing pins before test: %s", err)
	}
	snapshot := before.CIDs()

	t.Cleanup(func() {
		after, err := pins.Ls(ctx, client.PinTypeRecursive)
		if err != nil {
			t.Errorf("listing pins after test: %s", err)
			return
		}
		var result *multierror.Error
		for _, cid := range NewPins(snapshot, after.CIDs()) {
			if _, err := pins.Rm(ctx, cid); err != nil {
				result = multierror.Append(result, fmt.Errorf("unpinning %s: %w", cid, err))
			}
		}
		if err := result.ErrorOrNil(); err != nil {
			t.Errorf("restoring pins after test: %s", err)
		}
	})
}

// NewPins returns the identifiers in after that are not in before, sorted.
func NewPins(before, after []string) []string {
	seen := make(map[string]struct{}, len(before))
	for _, cid := range before {
		seen[cid] = struct{}{}
	}
	var ret []string
	for _, cid := range after {
		if _, ok := seen[cid]; !ok {
			ret = append(ret, cid)
			seen[cid] = struct{}{}
		}
	}
	sort.Strings(ret)
	return ret
}
