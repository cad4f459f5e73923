package domain

// SyncResult summarizes one vendor directory sync.
type SyncResult struct {
	Added      int
	Updated    int
	Skipped    int
	Total      int
	NewVendors []VendorCredential
}
