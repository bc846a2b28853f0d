package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/thanhpk/randstr"

	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

// ValidationError marks subscriber input the bot should explain
// rather than log as a failure.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

var knownModels = map[string]domain.ModelCode{
	"my": domain.ModelY,
	"m3": domain.Model3,
	"ms": domain.ModelS,
	"mx": domain.ModelX,
}

const watchIDLength = 6

// parseWatchSpec builds a watch from `key=value` arguments, e.g.
//
//	model=my market=ES price=45000 options=$PPSW,$PBSB trim=LRAWD
//
// Model is required; market defaults to ES, condition to new.
func parseWatchSpec(args []string, now time.Time) (domain.Watch, error) {
	w := domain.Watch{
		ID:        strings.ToLower(randstr.String(watchIDLength)),
		Market:    "ES",
		Condition: domain.ConditionNew,
		CreatedAt: now,
	}

	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || value == "" {
			return domain.Watch{}, validationErrorf(
				"expected key=value, got %q", arg,
			)
		}

		switch strings.ToLower(key) {
		case "model":
			model, ok := knownModels[strings.ToLower(value)]
			if !ok {
				return domain.Watch{}, validationErrorf(
					"unknown model %q (use my, m3, ms, mx)", value,
				)
			}
			w.Model = model
		case "market":
			w.Market = strings.ToUpper(value)
		case "condition":
			switch strings.ToLower(value) {
			case "new":
				w.Condition = domain.ConditionNew
			case "used":
				w.Condition = domain.ConditionUsed
			default:
				return domain.Watch{}, validationErrorf(
					"condition must be new or used, got %q", value,
				)
			}
		case "trim":
			w.Trim = strings.ToUpper(value)
		case "price":
			price, err := strconv.ParseFloat(value, 64)
			if err != nil || price <= 0 {
				return domain.Watch{}, validationErrorf(
					"price must be a positive number, got %q", value,
				)
			}
			w.MaxPrice = &price
		case "options":
			for _, code := range strings.Split(value, ",") {
				code = strings.TrimSpace(code)
				if code == "" {
					continue
				}
				if !strings.HasPrefix(code, "$") {
					code = "$" + code
				}
				w.OptionCodes = append(w.OptionCodes, strings.ToUpper(code))
			}
		default:
			return domain.Watch{}, validationErrorf(
				"unknown key %q (use model, market, condition, trim, price, options)",
				key,
			)
		}
	}

	if w.Model == "" {
		return domain.Watch{}, validationErrorf(
			"model is required, e.g. model=my",
		)
	}
	return w, nil
}

// describeWatch renders one watch for /watch list output.
func describeWatch(w *domain.Watch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "`%s` — %s %s %s",
		w.ID, strings.ToUpper(string(w.Model)), w.Market, w.Condition,
	)
	if w.Trim != "" {
		fmt.Fprintf(&b, " trim=%s", w.Trim)
	}
	if w.MaxPrice != nil {
		fmt.Fprintf(&b, " ≤%.0f", *w.MaxPrice)
	}
	if len(w.OptionCodes) > 0 {
		fmt.Fprintf(&b, " options=%s", strings.Join(w.OptionCodes, ","))
	}
	if n := len(w.SeenVINs); n > 0 {
		fmt.Fprintf(&b, " (%d seen)", n)
	}
	return b.String()
}
