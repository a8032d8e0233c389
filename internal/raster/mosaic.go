package raster

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/opengeos/opera-layer-service/internal/granule"
)

// bandPattern matches the band identifier at the end of OPERA raster file
// names, e.g. "_B01_WTR.tif".
var bandPattern = regexp.MustCompile(`_(B\d+_[A-Za-z0-9]+)\.tif$`)

// tilePattern matches an MGRS tile token such as "T10SEG" inside OPERA
// granule names: zone number 1-60, latitude band letter, 2-letter square.
var tilePattern = regexp.MustCompile(`_T(\d{1,2})([C-HJ-NP-X])([A-Z]{2})_`)

// BandID extracts the band identifier from an OPERA raster file name.
// Returns "" when the name carries no band suffix.
func BandID(fileName string) string {
	m := bandPattern.FindStringSubmatch(fileName)
	if m == nil {
		return ""
	}
	return m[1]
}

// MosaicGroup is a set of rasters sharing a projection, suitable for
// mosaicking into a single virtual raster.
type MosaicGroup struct {
	// EPSG is the numeric EPSG code of the group's UTM CRS.
	EPSG int `json:"epsg"`

	// Zone is a human-readable zone label such as "UTM 10N".
	Zone string `json:"zone"`

	// Band is the band identifier shared by the members.
	Band string `json:"band"`

	// Members are the VSI paths of the group's rasters.
	Members []string `json:"members"`

	// GranuleIDs are the native IDs of the contributing granules.
	GranuleIDs []string `json:"granule_ids"`
}

// utmEPSG returns the EPSG code for a UTM zone and MGRS latitude band.
// Bands C through M are the southern hemisphere (327xx), N through X the
// northern (326xx).
func utmEPSG(zone int, latBand byte) (int, error) {
	if zone < 1 || zone > 60 {
		return 0, fmt.Errorf("UTM zone %d out of range", zone)
	}
	// MGRS skips I and O to avoid confusion with 1 and 0.
	if latBand == 'I' || latBand == 'O' {
		return 0, fmt.Errorf("invalid MGRS latitude band %q", string(latBand))
	}
	switch {
	case latBand >= 'C' && latBand <= 'M':
		return 32700 + zone, nil
	case latBand >= 'N' && latBand <= 'X':
		return 32600 + zone, nil
	default:
		return 0, fmt.Errorf("invalid MGRS latitude band %q", string(latBand))
	}
}

// zoneLabel renders "UTM 10N" or "UTM 33S" from an EPSG code.
func zoneLabel(epsg int) string {
	if epsg >= 32701 && epsg <= 32760 {
		return fmt.Sprintf("UTM %dS", epsg-32700)
	}
	return fmt.Sprintf("UTM %dN", epsg-32600)
}

// granuleEPSG derives the UTM EPSG code of a granule from the MGRS tile
// token in its identifier.
func granuleEPSG(g *granule.Granule) (int, error) {
	for _, id := range []string{g.NativeID, g.ProducerGranuleID} {
		m := tilePattern.FindStringSubmatch("_" + id + "_")
		if m == nil {
			continue
		}
		zone, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		epsg, err := utmEPSG(zone, m[2][0])
		if err != nil {
			continue
		}
		return epsg, nil
	}
	return 0, fmt.Errorf("no MGRS tile token in granule %s", g.NativeID)
}

// GroupForMosaic groups the granules' rasters for one band by UTM zone.
// Rasters in the same zone share a CRS and can be mosaicked losslessly;
// zones with a single member still form a group. Granules without the
// requested band or without a recognizable tile token are skipped and
// reported in the second return value.
func GroupForMosaic(granules []*granule.Granule, band string) ([]MosaicGroup, []string, error) {
	if band == "" {
		return nil, nil, fmt.Errorf("%w: band is required", granule.ErrValidation)
	}
	if len(granules) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one granule is required", granule.ErrValidation)
	}

	groups := make(map[int]*MosaicGroup)
	var order []int
	var skipped []string

	for _, g := range granules {
		asset := g.BandAsset(band)
		if asset == nil {
			skipped = append(skipped, g.NativeID)
			continue
		}

		epsg, err := granuleEPSG(g)
		if err != nil {
			skipped = append(skipped, g.NativeID)
			continue
		}

		group, ok := groups[epsg]
		if !ok {
			group = &MosaicGroup{
				EPSG: epsg,
				Zone: zoneLabel(epsg),
				Band: band,
			}
			groups[epsg] = group
			order = append(order, epsg)
		}
		group.Members = append(group.Members, VSIPath(asset.URL))
		group.GranuleIDs = append(group.GranuleIDs, g.NativeID)
	}

	if len(groups) == 0 {
		return nil, skipped, fmt.Errorf("%w: no granule carries band %q with a recognizable tile",
			granule.ErrNotFound, band)
	}

	out := make([]MosaicGroup, 0, len(order))
	for _, epsg := range order {
		out = append(out, *groups[epsg])
	}
	return out, skipped, nil
}
