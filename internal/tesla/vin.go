package tesla

import (
	"fmt"
	"strings"
)

var factoryCodes = map[byte]string{
	'F': "Fremont",
	'C': "Shanghai",
	'B': "Berlin",
	'A': "Austin",
}

var modelYearCodes = map[byte]int{
	'M': 2021,
	'N': 2022,
	'P': 2023,
	'R': 2024,
	'S': 2025,
	'T': 2026,
}

// DecodeVIN extracts the build factory and model year from a Tesla
// VIN, formatted as "Berlin (2025)". Position 11 encodes the plant and
// position 10 the model year. Returns false for anything that is not a
// 17-character VIN.
func DecodeVIN(vin string) (string, bool) {
	if len(vin) != 17 {
		return "", false
	}

	factory, ok := factoryCodes[vin[10]]
	if !ok {
		factory = "Unknown Factory"
	}

	if year, ok := modelYearCodes[vin[9]]; ok {
		return fmt.Sprintf("%s (%d)", factory, year), true
	}
	return fmt.Sprintf("%s (Unknown Year)", factory), true
}

// CompositorURL builds the configurator render URL for a vehicle from
// its option codes. The model code from the owner API (e.g. "$MDLY")
// is mapped onto the compositor's short model names.
func CompositorURL(optionCodes []string, modelCode string) string {
	clean := make([]string, 0, len(optionCodes))
	for _, c := range optionCodes {
		if c != "" {
			clean = append(clean, c)
		}
	}

	model := compositorModel(modelCode)
	return fmt.Sprintf(
		"https://static-assets.tesla.com/configurator/compositor?model=%s&options=%s&view=STUD_3QTR&size=1920&bkba_opt=1&crop=1400,850,300,300",
		model,
		strings.Join(clean, ","),
	)
}

func compositorModel(modelCode string) string {
	lower := strings.ToLower(modelCode)
	switch {
	case strings.Contains(lower, "mdl3"), strings.Contains(lower, "model3"):
		return "m3"
	case strings.Contains(lower, "mdls"), strings.Contains(lower, "models"):
		return "ms"
	case strings.Contains(lower, "mdlx"), strings.Contains(lower, "modelx"):
		return "mx"
	default:
		return "my"
	}
}
