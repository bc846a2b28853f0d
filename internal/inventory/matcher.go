package inventory

import (
	"github.com/XaviFortes/tesla-tracker/internal/tesla"
	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

// Match filters an inventory result set against one watch.
//
// The price ceiling is inclusive and compares against the on-the-road
// price when the market publishes one. A vehicle without any price is
// excluded whenever a ceiling is set.
//
// Option codes are grouped by family before matching: codes from the
// same family (two paints, two wheel sets) are alternatives, so the
// vehicle needs at least one of them; distinct families all have to be
// satisfied. A code the catalog does not know forms its own
// single-member family and is therefore required outright.
func Match(vehicles []tesla.Vehicle, w domain.Watch) []tesla.Vehicle {
	groups := groupByFamily(w.Model, w.OptionCodes)

	var matches []tesla.Vehicle
	for i := range vehicles {
		v := &vehicles[i]

		if w.MaxPrice != nil {
			price := v.EffectivePrice()
			if price <= 0 || price > *w.MaxPrice {
				continue
			}
		}

		if !hasAllFamilies(v.Options(), groups) {
			continue
		}

		matches = append(matches, *v)
	}
	return matches
}

// groupByFamily buckets the watch's required codes. Unknown codes get
// a synthetic family keyed by the code itself.
func groupByFamily(model domain.ModelCode, codes []string) map[Family][]string {
	if len(codes) == 0 {
		return nil
	}
	groups := make(map[Family][]string)
	for _, code := range codes {
		family, ok := FamilyOf(model, code)
		if !ok {
			family = Family("code:" + code)
		}
		groups[family] = append(groups[family], code)
	}
	return groups
}

func hasAllFamilies(vehicleCodes []string, groups map[Family][]string) bool {
	if len(groups) == 0 {
		return true
	}

	present := make(map[string]bool, len(vehicleCodes))
	for _, code := range vehicleCodes {
		present[code] = true
	}

	for _, alternatives := range groups {
		satisfied := false
		for _, code := range alternatives {
			if present[code] {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}
