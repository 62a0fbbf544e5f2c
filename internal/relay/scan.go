package relay

import (
	"context"
	"fmt"
	"sync"
)

// DefaultPageSize is used when Scan is given a non-positive page size.
const DefaultPageSize = 10

// PageScanner fetches one page of pending entries.
type PageScanner interface {
	ScanPage(ctx context.Context, cursor Cursor, count int) (Page, error)
}

// Scan iterates over every pending entry. Pages are fetched one after another and
// the entries of a page are handed to visit concurrently; the next page is not
// fetched before every visit of the current one returned. This keeps the number of
// simultaneous visits at pageSize at most, whatever the size of the queue.
//
// An address the backend returns twice within one iteration is visited once.
// Scan returns the number of visited entries. A failed page fetch stops the
// iteration and is returned; visits already dispatched have completed by then.
func Scan(ctx context.Context, scanner PageScanner, pageSize int, visit func(ctx context.Context, entry PendingEntry)) (int, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var (
		cursor  = StartCursor
		seen    = make(map[string]struct{})
		visited = 0
	)

	for {
		page, err := scanner.ScanPage(ctx, cursor, pageSize)
		if err != nil {
			return visited, fmt.Errorf("failed to fetch queue page: %w", err)
		}

		var wg sync.WaitGroup
		for _, entry := range page.Entries {
			if _, ok := seen[entry.Address]; ok {
				continue
			}
			seen[entry.Address] = struct{}{}
			visited++

			wg.Add(1)
			go func(entry PendingEntry) {
				defer wg.Done()
				visit(ctx, entry)
			}(entry)
		}
		wg.Wait()

		if page.Next.Exhausted() {
			return visited, nil
		}
		if err := ctx.Err(); err != nil {
			return visited, err
		}
		cursor = page.Next
	}
}
