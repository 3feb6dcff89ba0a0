package importer

import (
	"fmt"
	"io"

	"github.com/terrakit/terrakit/internal/importer/registrycsv"
	"github.com/terrakit/terrakit/internal/parcel"
)

type Service struct {
	registryImporter Importer
}

func NewService() *Service {
	return &Service{
		registryImporter: registrycsv.New(),
	}
}

func (s *Service) Import(source Source, r io.Reader) ([]parcel.InventoryRow, error) {
	var imp Importer

	switch source {
	case SourceRegistry:
		imp = s.registryImporter
	default:
		return nil, fmt.Errorf("unknown source: %s", source)
	}

	return imp.Parse(r)
}
