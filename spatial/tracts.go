// Package spatial maps coordinates to census tracts. It loads tract
// polygons from a TIGER/Line shapefile and answers point-in-tract
// queries with a bounding-box prefilter and ray casting.
package spatial

import (
	"strings"

	shp "github.com/jonas-p/go-shp"

	"github.com/rainierlab/crimecensus/pkg/errors"
	"github.com/rainierlab/crimecensus/pkg/log"
)

// Tract is one census tract polygon (possibly multi-part) together with
// its DBF attribute values.
type Tract struct {
	GEOID string
	Attrs map[string]string

	// Each part is a closed ring of [lat, lon] points.
	rings [][][2]float64

	minLat, minLon float64
	maxLat, maxLon float64
}

// Index holds the loaded tract polygons for lookup.
type Index struct {
	tracts []Tract
}

// Len returns the number of tracts in the index.
func (ix *Index) Len() int { return len(ix.tracts) }

// Tracts returns the loaded tracts.
func (ix *Index) Tracts() []Tract { return ix.tracts }

// LoadTracts reads tract polygons from the shapefile at path. When
// countyFP is non-empty, only tracts whose COUNTYFP attribute matches
// are kept (TIGER ships statewide files; we usually want one county).
func LoadTracts(path, countyFP string) (*Index, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "spatial: open shapefile %s", path)
	}
	defer r.Close()

	fields := r.Fields()

	ix := &Index{}
	for r.Next() {
		idx, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			// Tract layers are polygon-only; skip anything else.
			continue
		}

		attrs := make(map[string]string, len(fields))
		for i, f := range fields {
			attrs[f.String()] = strings.TrimSpace(r.ReadAttribute(idx, i))
		}

		if countyFP != "" && attrs["COUNTYFP"] != countyFP {
			continue
		}

		tract := Tract{
			GEOID:  attrs["GEOID"],
			Attrs:  attrs,
			minLat: 91, minLon: 181,
			maxLat: -91, maxLon: -181,
		}

		numParts := len(poly.Parts)
		tract.rings = make([][][2]float64, numParts)
		for partIdx := 0; partIdx < numParts; partIdx++ {
			start := poly.Parts[partIdx]
			end := int32(len(poly.Points))
			if partIdx+1 < numParts {
				end = poly.Parts[partIdx+1]
			}
			ring := make([][2]float64, int(end-start))
			j := 0
			for i := start; i < end; i++ {
				pt := poly.Points[i]
				ring[j] = [2]float64{pt.Y, pt.X} // lat, lon
				if pt.Y < tract.minLat {
					tract.minLat = pt.Y
				}
				if pt.Y > tract.maxLat {
					tract.maxLat = pt.Y
				}
				if pt.X < tract.minLon {
					tract.minLon = pt.X
				}
				if pt.X > tract.maxLon {
					tract.maxLon = pt.X
				}
				j++
			}
			tract.rings[partIdx] = ring
		}

		ix.tracts = append(ix.tracts, tract)
	}

	if len(ix.tracts) == 0 {
		return nil, errors.Newf("spatial: no tracts loaded from %s (county filter %q)", path, countyFP)
	}

	log.GetLogger().Debug("tract index loaded",
		log.PathKey, path,
		log.TractsKey, len(ix.tracts))

	return ix, nil
}

// Locate returns the GEOID of the tract containing the point, if any.
func (ix *Index) Locate(lat, lon float64) (string, bool) {
	for i := range ix.tracts {
		t := &ix.tracts[i]
		if lat < t.minLat || lat > t.maxLat || lon < t.minLon || lon > t.maxLon {
			continue // bbox reject
		}
		for _, ring := range t.rings {
			if pointInPolygon(lat, lon, ring) {
				return t.GEOID, true
			}
		}
	}
	return "", false
}

// pointInPolygon is the ray-casting test. Shapefile rings are closed so
// no explicit closing segment is needed.
func pointInPolygon(lat, lon float64, ring [][2]float64) bool {
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		yi, xi := ring[i][0], ring[i][1]
		yj, xj := ring[j][0], ring[j][1]
		intersect := ((yi > lat) != (yj > lat)) && (lon < (xj-xi)*(lat-yi)/(yj-yi)+xi)
		if intersect {
			inside = !inside
		}
		j = i
	}
	return inside
}
