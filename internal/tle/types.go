package tle

import (
	"time"

	"github.com/cedarwud/ntn-stack-sub027/internal/constellation"
)

// TLERecord is a validated two-line element set for one satellite.
type TLERecord struct {
	CatalogNumber int
	Name          string
	Constellation constellation.ID
	Line1         string
	Line2         string
	Epoch         time.Time
}

// EpochRange is the minimum and maximum epoch across a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset is a complete catalog loaded from one source for one constellation.
type Dataset struct {
	Constellation constellation.ID
	Source        string
	FetchedAt     time.Time
	EpochRange    EpochRange
	Records       []TLERecord
}

// NewDataset assembles a dataset and computes its epoch range.
func NewDataset(id constellation.ID, source string, fetchedAt time.Time, records []TLERecord) *Dataset {
	ds := &Dataset{
		Constellation: id,
		Source:        source,
		FetchedAt:     fetchedAt,
		Records:       records,
	}
	for i, r := range records {
		if i == 0 || r.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = r.Epoch
		}
		if i == 0 || r.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = r.Epoch
		}
	}
	return ds
}
