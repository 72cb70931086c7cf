// Package entities holds the sample entities and repositories used by
// repoctl.
package entities

import (
	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/repository"
)

// Register installs the code-declared descriptors on rc's extractor. It
// must run before the product repository is first requested.
func Register(rc *repository.Context) {
	rc.Extractor().Register(ProductDescriptor())
}

// Metadata returns the table mappings of every sample entity, for
// creating tables.
func Metadata(rc *repository.Context) ([]*metadata.EntityMetadata, error) {
	users, err := metadata.ExtractFor[User](rc.Extractor())
	if err != nil {
		return nil, err
	}
	products, err := metadata.ExtractFor[Product](rc.Extractor())
	if err != nil {
		return nil, err
	}
	return []*metadata.EntityMetadata{users, products}, nil
}
