package report

import (
	"sort"
	"strings"
)

// UnknownRegion labels addresses with no usable region segment.
const UnknownRegion = "Unknown region"

// RegionCount is the number of reports in one region.
type RegionCount struct {
	Region string `json:"region"`
	Count  int    `json:"count"`
}

// Summarize counts reports per region, most reports first. Reports without
// an address are skipped.
func Summarize(reports []Report) []RegionCount {
	counts := make(map[string]int)
	for _, r := range reports {
		if r.AddressLocation == "" {
			continue
		}
		counts[regionOf(r.AddressLocation)]++
	}

	out := make([]RegionCount, 0, len(counts))
	for region, n := range counts {
		out = append(out, RegionCount{Region: region, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Region < out[j].Region
	})
	return out
}

// regionOf takes "street, region - city" and returns "region". With no comma
// the first segment is used as-is.
func regionOf(address string) string {
	head, _, _ := strings.Cut(address, " - ")
	parts := strings.Split(head, ",")
	if len(parts) > 1 {
		if region := strings.TrimSpace(parts[1]); region != "" {
			return region
		}
		return UnknownRegion
	}
	if first := strings.TrimSpace(parts[0]); first != "" {
		return first
	}
	return UnknownRegion
}
