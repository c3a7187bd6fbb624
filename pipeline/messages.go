package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aluiziolira/autotrader-watch/messenger"
	"github.com/aluiziolira/autotrader-watch/models"
)

const unknown = "Unknown"

func searchAlertMessage(c models.Criterion) string {
	maxMileage := "any"
	if c.MaxMileage != nil {
		maxMileage = strconv.Itoa(*c.MaxMileage) + " km"
	}
	minYear := "any"
	if c.MinYear != nil {
		minYear = strconv.Itoa(*c.MinYear)
	}

	var b strings.Builder
	b.WriteString("🔍🚗 *🚨 Car Search Alert!* 🚨\n\n")
	b.WriteString("📋 *Search Criteria*:\n")
	fmt.Fprintf(&b, "💰 *Max Price*: %s\n", formatPrice(c.MaxPrice))
	fmt.Fprintf(&b, "📏 *Max Mileage*: %s\n", maxMileage)
	fmt.Fprintf(&b, "📍 *Max Proximity*: %d km\n", c.MaxProximityKm)
	fmt.Fprintf(&b, "🚗 *Brand*: %s\n", messenger.EscapeMarkdown(c.Label()))
	fmt.Fprintf(&b, "📅 *Min Year*: %s\n", minYear)
	if c.UseDescriptionCheck {
		b.WriteString("🧠 *Description check*: on\n")
	}
	return b.String()
}

func listingMessage(l models.Listing, year *int, tag string) string {
	yearText := unknown
	if year != nil {
		yearText = strconv.Itoa(*year)
	}
	price := unknown
	if l.Price != nil {
		price = formatPrice(*l.Price)
	}
	mileage := unknown
	if l.Mileage != nil {
		mileage = strconv.Itoa(*l.Mileage)
	}
	proximity := unknown
	if l.ProximityKm != nil {
		proximity = strconv.Itoa(*l.ProximityKm)
	}

	var b strings.Builder
	b.WriteString("🎉 *New Car Found* 🎉:\n\n")
	fmt.Fprintf(&b, "📝 *Title*: %s\n", messenger.EscapeMarkdown(l.TitleText()))
	fmt.Fprintf(&b, "📅 *Year*: %s\n", yearText)
	fmt.Fprintf(&b, "💰 *Price*: %s\n", price)
	fmt.Fprintf(&b, "📏 *Mileage*: %s km\n", mileage)
	fmt.Fprintf(&b, "📍 *Proximity*: %s km\n", proximity)
	if tag != "" {
		fmt.Fprintf(&b, "🧠 *Verdict*: %s\n", tag)
	}
	fmt.Fprintf(&b, "🔗 *Link*: [View Car](%s)", l.URL())
	return b.String()
}

// formatPrice renders whole dollars with thousands separators.
func formatPrice(p float64) string {
	s := strconv.FormatInt(int64(p+0.5), 10)
	var b strings.Builder
	b.WriteByte('$')
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func idList(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return messenger.EscapeMarkdown(strings.Join(ids, ", "))
}
