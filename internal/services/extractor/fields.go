package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mapscraper/internal/domain"
)

// Selectors for the place detail pane.
const (
	nameSelector    = "h1"
	addressSelector = `button[data-item-id="address"] div[aria-label]`
	phoneSelector   = `button[data-item-id^="phone:tel"] div[aria-label]`
	websiteSelector = `a[data-item-id="authority"]`
	ratingSelector  = `div[role="img"][aria-label*="stars"]`
	reviewsSelector = `button[jsaction*="reviews"] span`
)

var (
	ratingPattern = regexp.MustCompile(`([0-9.]+)\s+stars`)
	nonDigits     = regexp.MustCompile(`\D`)
)

// ParseDetail extracts a listing from a rendered detail pane. Fields that
// are missing or unparsable are left nil.
func ParseDetail(html string) domain.Listing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.Listing{}
	}

	var l domain.Listing
	l.Name = nonEmpty(doc.Find(nameSelector).First().Text())
	l.Address = attr(doc, addressSelector, "aria-label", "Address:")
	l.Phone = attr(doc, phoneSelector, "aria-label", "Phone:")
	l.Website = attr(doc, websiteSelector, "href", "")
	if label := attr(doc, ratingSelector, "aria-label", ""); label != nil {
		l.Rating = ParseRating(*label)
	}
	if sel := doc.Find(reviewsSelector).First(); sel.Length() > 0 {
		l.ReviewsCount = ParseReviewCount(sel.Text())
	}
	return l
}

// ParseRating reads "<number> stars" from an accessibility label. Values
// outside 0..5 are rejected.
func ParseRating(label string) *float64 {
	m := ratingPattern.FindStringSubmatch(label)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v < 0 || v > 5 {
		return nil
	}
	return &v
}

// ParseReviewCount keeps only the digits of text, so "(1,234)" is 1234.
func ParseReviewCount(text string) *int {
	digits := nonDigits.ReplaceAllString(text, "")
	if digits == "" {
		return nil
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &v
}

func attr(doc *goquery.Document, selector, name, prefix string) *string {
	v, ok := doc.Find(selector).First().Attr(name)
	if !ok {
		return nil
	}
	if prefix != "" {
		v = strings.TrimPrefix(strings.TrimSpace(v), prefix)
	}
	return nonEmpty(v)
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
