package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/autotrader-watch/models"
)

// Selectors for the listing-results markup.
const (
	BlockSelector     = `div[id="result-item-inner-div"]`
	titleSelector     = "span.title-with-trim"
	priceSelector     = "span.price-amount"
	linkSelector      = "a.inner-link"
	mileageSelector   = "span.odometer-proximity"
	proximitySelector = `.proximity [class="proximity-text"]`

	descriptionSelector = `meta[name="description"]`
)

// MinDescriptionLength is the shortest description kept; anything shorter is
// treated as absent.
const MinDescriptionLength = 3

var (
	nonPriceChars = regexp.MustCompile(`[^\d.]`)
	nonDigits     = regexp.MustCompile(`[^\d]`)
	yearPattern   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// ValidateListing ensures the block produced a usable primary key.
func ValidateListing(l *models.Listing) error {
	if l == nil {
		return fmt.Errorf("listing is nil")
	}
	if strings.TrimSpace(l.ID) == "" {
		return fmt.Errorf("listing missing id for %q", l.TitleText())
	}
	return nil
}

// SanitizePrice strips everything but digits and dots and parses the rest.
// It returns nil when nothing numeric is left.
func SanitizePrice(text string) *float64 {
	cleaned := nonPriceChars.ReplaceAllString(text, "")
	if cleaned == "" {
		return nil
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &value
}

// SanitizeMileage keeps the digits of an odometer reading.
func SanitizeMileage(text string) *int {
	return digitsOnly(text)
}

// SanitizeProximity keeps the digits of a distance such as "25 km".
func SanitizeProximity(text string) *int {
	return digitsOnly(text)
}

func digitsOnly(text string) *int {
	cleaned := nonDigits.ReplaceAllString(text, "")
	if cleaned == "" {
		return nil
	}
	value, err := strconv.Atoi(cleaned)
	if err != nil {
		return nil
	}
	return &value
}

// ExtractYear returns the first standalone 19xx or 20xx token of a title.
func ExtractYear(title string) *int {
	match := yearPattern.FindString(title)
	if match == "" {
		return nil
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &year
}

// ParseListings extracts every listing block of a results page. Relative
// product links are resolved against pageURL.
func ParseListings(body []byte, pageURL string) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	var listings []models.Listing
	doc.Find(BlockSelector).Each(func(_ int, block *goquery.Selection) {
		listings = append(listings, extractListing(block, base))
	})
	return listings, nil
}

func extractListing(block *goquery.Selection, base *url.URL) models.Listing {
	listing := models.Listing{
		ID:          strings.TrimSpace(block.ParentsFiltered("div").First().AttrOr("id", "")),
		Title:       optionalText(block.Find(titleSelector).First().Text()),
		Price:       SanitizePrice(block.Find(priceSelector).First().Text()),
		Mileage:     SanitizeMileage(block.Find(mileageSelector).First().Text()),
		ProximityKm: SanitizeProximity(block.Find(proximitySelector).First().Text()),
	}

	if href, ok := block.Find(linkSelector).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			abs := base.ResolveReference(ref).String()
			listing.ProductURL = &abs
		}
	}
	return listing
}

func optionalText(text string) *string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return &text
}

// ContainsMarker reports whether the body carries one of the site-error markers.
func ContainsMarker(body []byte, markers []string) bool {
	for _, marker := range markers {
		if marker != "" && bytes.Contains(body, []byte(marker)) {
			return true
		}
	}
	return false
}

// ExtractDescription returns the normalised meta description of a product page.
func ExtractDescription(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse product page: %w", err)
	}
	content, _ := doc.Find(descriptionSelector).First().Attr("content")
	return NormalizeDescription(content), nil
}

// NormalizeDescription trims the text and drops it when it is too short.
func NormalizeDescription(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinDescriptionLength {
		return ""
	}
	return text
}
