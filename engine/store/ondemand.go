package store

import "context"

// OnDemand opens the database for each fetch and closes it afterwards.
// The query path uses it so no connection is held between requests.
type OnDemand struct {
	Path string
}

// FetchByIDs opens the store, fetches the rows and closes it again.
func (o OnDemand) FetchByIDs(ctx context.Context, ids []string) ([]ChunkRow, error) {
	s, err := Open(o.Path)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.FetchByIDs(ctx, ids)
}
