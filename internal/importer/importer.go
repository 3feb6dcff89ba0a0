package importer

import (
	"io"

	"github.com/terrakit/terrakit/internal/parcel"
)

// Source identifies which office's export format a parcel inventory file
// uses.
type Source string

const (
	SourceRegistry Source = "registry"
)

type Importer interface {
	Parse(r io.Reader) ([]parcel.InventoryRow, error)
}
