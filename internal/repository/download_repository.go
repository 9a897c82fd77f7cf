package repository

import "context"

// DownloadRepository defines database operations on the download log, which
// doubles as the quota ledger: a file's download limit is counted as
// DISTINCT request tokens in the log, so repeated downloads through one
// approved request occupy a single slot.
type DownloadRepository interface {
	// Authorize checks the distinct-requester count against maxDownloads
	// and, when a slot is available, records the download, all inside one
	// transaction that locks the file row. Returns (false, nil) when the
	// quota is spent. The count includes the caller's own earlier
	// downloads, so a request that already consumed a slot is denied once
	// the ceiling is reached.
	Authorize(ctx context.Context, fileID, requestID, ipHash string, maxDownloads int) (bool, error)

	// CountDistinct returns how many distinct request tokens have
	// downloaded the file.
	CountDistinct(ctx context.Context, fileID string) (int, error)
}
