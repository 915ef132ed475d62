package internaldocs

import "context"

// DocumentLister yields documents held in local storage (the ingested
// document table).
type DocumentLister interface {
	ListDocuments(ctx context.Context) ([]Document, error)
}

// LocalFetcher serves ingested documents from the database as one of
// the internal doc sub-sources.
type LocalFetcher struct {
	name   string
	lister DocumentLister
}

func NewLocalFetcher(name string, lister DocumentLister) *LocalFetcher {
	return &LocalFetcher{
		name:   name,
		lister: lister,
	}
}

func (f *LocalFetcher) Name() string {
	return f.name
}

func (f *LocalFetcher) FetchAll(ctx context.Context) ([]Document, error) {
	return f.lister.ListDocuments(ctx)
}
