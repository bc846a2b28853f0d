package inventory

import (
	"github.com/XaviFortes/tesla-tracker/internal/tesla"
)

// Unseen splits matched vehicles into the ones the watch has not
// alerted on before, and returns the seen set grown with their VINs.
// Vehicles without a VIN are always treated as new and never recorded,
// since there is nothing stable to dedup on. The input set is not
// mutated.
func Unseen(
	seen map[string]bool,
	matches []tesla.Vehicle,
) ([]tesla.Vehicle, map[string]bool) {
	updated := make(map[string]bool, len(seen)+len(matches))
	for vin := range seen {
		updated[vin] = true
	}

	var fresh []tesla.Vehicle
	for _, v := range matches {
		if v.VIN == "" {
			fresh = append(fresh, v)
			continue
		}
		if updated[v.VIN] {
			continue
		}
		updated[v.VIN] = true
		fresh = append(fresh, v)
	}
	return fresh, updated
}
