package models

// BatchResult is the unit of checkpointing: the enumeration map and the metadata
// map for one slice of playlists. It is written once and never mutated afterwards.
type BatchResult struct {
	BatchNumber int                      `json:"batch_number"`
	Playlists   map[string][]string      `json:"playlists"`
	Videos      map[string][]VideoRecord `json:"videos"`

	// Slice is the deterministic set of playlists attempted for this batch, in input order.
	Slice []string `json:"-"`
	// Failed lists playlists that were skipped because enumeration failed or came back empty.
	Failed []string `json:"-"`
}

func NewBatchResult(batchNumber int, slice []string) *BatchResult {
	return &BatchResult{
		BatchNumber: batchNumber,
		Playlists:   make(map[string][]string),
		Videos:      make(map[string][]VideoRecord),
		Slice:       slice,
	}
}

func (b *BatchResult) Empty() bool {
	return len(b.Playlists) == 0
}

// VideoCount is the number of metadata records collected across all playlists.
func (b *BatchResult) VideoCount() int {
	n := 0
	for _, recs := range b.Videos {
		n += len(recs)
	}
	return n
}

// LastPlaylistID returns the last playlist of the slice that produced an entry.
func (b *BatchResult) LastPlaylistID() string {
	for i := len(b.Slice) - 1; i >= 0; i-- {
		if _, ok := b.Playlists[b.Slice[i]]; ok {
			return b.Slice[i]
		}
	}
	return ""
}
