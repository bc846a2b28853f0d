package engine

import (
	"fmt"
	"strings"

	"github.com/XaviFortes/tesla-tracker/internal/tesla"
)

const maxBlockingSteps = 3

// FormatOrderUpdate renders the Markdown notification for a new or
// changed order.
func FormatOrderUpdate(order *tesla.Order, detail *tesla.OrderDetail) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🚗 **Update: %s**\n", order.ReferenceNumber)
	fmt.Fprintf(&b, "**Delivery:** %s\n", detail.DeliveryWindow())

	if order.VIN != "" {
		fmt.Fprintf(&b, "**VIN:** `%s`\n", order.VIN)
		if intel, ok := tesla.DecodeVIN(order.VIN); ok {
			fmt.Fprintf(&b, "Based in: %s\n", intel)
		}
	}

	if blocking := detail.BlockingSteps(); len(blocking) > 0 {
		b.WriteString("\n⚠️ **Action Required:**\n")
		limit := min(len(blocking), maxBlockingSteps)
		for _, step := range blocking[:limit] {
			fmt.Fprintf(&b, "• %s\n", step)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// FormatVehicleFound renders the Markdown notification for an
// inventory match.
func FormatVehicleFound(v *tesla.Vehicle) string {
	price := "N/A"
	if p := v.EffectivePrice(); p > 0 {
		currency := v.CurrencyCode
		if currency == "" {
			currency = "EUR"
		}
		price = fmt.Sprintf("%.0f %s", p, currency)
	}

	trim := v.TrimName
	if trim == "" {
		trim = "Unknown Trim"
	}
	color := v.PaintColor
	if color == "" {
		color = "Unknown Color"
	}
	city := v.City
	if city == "" {
		city = "Unknown Location"
	}

	var b strings.Builder
	b.WriteString("🚙 **Inventory Found!**\n")
	fmt.Fprintf(&b, "**Price:** %s\n", price)
	fmt.Fprintf(&b, "**Trim:** %s\n", trim)
	fmt.Fprintf(&b, "**Color:** %s\n", color)
	fmt.Fprintf(&b, "**City:** %s\n", city)
	fmt.Fprintf(&b, "🔗 [View Car](%s)", v.OrderURL())
	return b.String()
}
