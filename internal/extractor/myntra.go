package extractor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricewatch/product-scraper/internal/models"
)

const SiteMyntra = "myntra"

var (
	digitsRe    = regexp.MustCompile(`\d+`)
	numericIDRe = regexp.MustCompile(`^\d+$`)
	priceRe     = regexp.MustCompile(`(?i)(?:₹|₨|Rs\.?)?\s*([\d,]+)`)
	currencyRe  = regexp.MustCompile(`(?i)[₹₨]|Rs\.?`)
)

var titleSelectors = []string{
	".pdp-title h1",
	".pdp-name",
	".title-container h1",
	"h1.title",
	"h1",
}

var brandSelectors = []string{
	".pdp-title .brand-name",
	".brand-name",
	".pdp-product-brand",
	".breadcrumbs a:first-child",
}

var priceSelectors = []string{
	".pdp-price .selling-price strong",
	".pdp-price strong",
	".pdp-price .selling-price",
	"span.pdp-price strong",
	"p.price-container span",
	"span[class*='discountedPrice']",
	".price-value",
	"div[class*='priceWrapper'] span",
	"span[class*='price']",
	"div[class*='price']",
}

var descriptionSelectors = []string{
	".pdp-product-description",
	".description",
	"div[class*='description']",
}

// Myntra extracts product records from myntra.com detail pages.
type Myntra struct {
	defaultAvailability models.Availability
	logger              *slog.Logger
}

func NewMyntra(defaultAvailability models.Availability) *Myntra {
	return &Myntra{
		defaultAvailability: defaultAvailability,
		logger:              slog.Default().With("component", "extractor", "site", SiteMyntra),
	}
}

func (m *Myntra) Site() string { return SiteMyntra }

// ResolveURL accepts a full URL, a bare numeric product id, or a
// site-relative path.
func (m *Myntra) ResolveURL(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty product URL or id")
	}

	if numericIDRe.MatchString(input) {
		return "https://www.myntra.com/products/" + input, nil
	}

	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		input = "https://www.myntra.com/" + strings.TrimPrefix(input, "/")
	}

	if !strings.Contains(input, "myntra.com") {
		return "", fmt.Errorf("not a myntra URL or product id: %s", input)
	}

	return input, nil
}

// DeriveKey strips query parameters and keys on the product id: the
// last all-numeric path segment, so listing-style and buy-style URL
// variants of one product share a key.
func (m *Myntra) DeriveKey(rawURL string) string {
	trimmed := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		trimmed = parsed.Path
	}

	segments := strings.Split(strings.Trim(trimmed, "/"), "/")
	segment := ""
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] == "" {
			continue
		}
		if segment == "" {
			segment = segments[i]
		}
		if numericIDRe.MatchString(segments[i]) {
			return segments[i]
		}
	}

	if digits := digitsRe.FindAllString(segment, -1); len(digits) > 0 {
		return digits[len(digits)-1]
	}

	return segment
}

// Extract never fails: any internal error leaves default values in
// place. Partial data beats a hard failure here.
func (m *Myntra) Extract(content string) (record models.ProductRecord) {
	record = models.DefaultRecord(SiteMyntra, m.defaultAvailability)

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("extraction panicked, returning defaults", "panic", r)
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		m.logger.Warn("unparseable page content", "error", err)
		return record
	}

	if title := firstText(doc, titleSelectors); title != "" {
		record.Title = title
	}
	if brand := firstText(doc, brandSelectors); brand != "" {
		record.Brand = brand
	}
	if price := m.extractPrice(doc); price != "" {
		record.Price = price
	}
	if desc := firstText(doc, descriptionSelectors); desc != "" {
		record.Description = desc
	}

	record.AvailableSizes = extractSizes(doc)
	m.applyStructuredData(doc, &record)

	if m.looksOutOfStock(content) {
		record.Availability = models.AvailabilityOutOfStock
	}

	// Page <title> as last resort for title and brand.
	if record.Title == models.DefaultTitle {
		if pageTitle := strings.TrimSpace(doc.Find("title").First().Text()); pageTitle != "" {
			record.Title = strings.TrimSuffix(pageTitle, " | Myntra")
		}
	}
	if record.Brand == models.DefaultBrand && record.Title != models.DefaultTitle {
		if parts := strings.Fields(strings.SplitN(record.Title, " - ", 2)[0]); len(parts) > 1 {
			record.Brand = parts[0]
		}
	}

	return record
}

func (m *Myntra) extractPrice(doc *goquery.Document) string {
	for _, selector := range priceSelectors {
		price := ""
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := strings.TrimSpace(sel.Text())
			if text == "" {
				return true
			}

			// Require a currency marker unless the element is
			// explicitly price-classed, so product ids in nearby
			// markup are not mistaken for prices.
			class, _ := sel.Attr("class")
			if !currencyRe.MatchString(text) && !strings.Contains(strings.ToLower(class), "price") {
				return true
			}

			if cleaned := cleanPrice(text); cleaned != "" {
				price = cleaned
				return false
			}
			return true
		})
		if price != "" {
			return price
		}
	}
	return ""
}

// cleanPrice pulls the numeric amount out of price text. Values over
// six digits are rejected; those are product ids, not prices.
func cleanPrice(text string) string {
	match := priceRe.FindStringSubmatch(text)
	if len(match) < 2 {
		return ""
	}

	cleaned := strings.ReplaceAll(match[1], ",", "")
	if cleaned == "" || len(cleaned) > 6 {
		return ""
	}
	return cleaned
}

func (m *Myntra) looksOutOfStock(content string) bool {
	lowered := strings.ToLower(content)
	return strings.Contains(lowered, "out of stock") || strings.Contains(lowered, "sold out")
}

// structuredProduct is the subset of schema.org Product markup we
// consume. Brand and image appear as both bare strings and objects in
// the wild, hence the raw messages.
type structuredProduct struct {
	Type        string          `json:"@type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Brand       json.RawMessage `json:"brand"`
	Image       json.RawMessage `json:"image"`
	Price       json.Number     `json:"price"`
	Offers      *struct {
		Price        json.Number `json:"price"`
		Availability string      `json:"availability"`
	} `json:"offers"`
}

// applyStructuredData fills fields still at their defaults from
// JSON-LD product markup, which is usually the most complete source.
func (m *Myntra) applyStructuredData(doc *goquery.Document, record *models.ProductRecord) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var product structuredProduct
		if err := json.Unmarshal([]byte(sel.Text()), &product); err != nil {
			return
		}
		if product.Type != "Product" {
			return
		}

		if record.Title == models.DefaultTitle && product.Name != "" {
			record.Title = product.Name
		}
		if record.Description == "" && product.Description != "" {
			record.Description = product.Description
		}
		if record.Brand == models.DefaultBrand {
			if brand := decodeBrand(product.Brand); brand != "" {
				record.Brand = brand
			}
		}
		if record.Price == models.DefaultPrice {
			if product.Offers != nil && product.Offers.Price != "" {
				record.Price = product.Offers.Price.String()
			} else if product.Price != "" {
				record.Price = product.Price.String()
			}
		}
		if len(record.Images) == 0 {
			record.Images = decodeImages(product.Image)
		}
		if product.Offers != nil && strings.Contains(product.Offers.Availability, "OutOfStock") {
			record.Availability = models.AvailabilityOutOfStock
		}
	})
}

func decodeBrand(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Name
	}
	return ""
}

func decodeImages(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}

	var one string
	if err := json.Unmarshal(raw, &one); err == nil && one != "" {
		return []string{one}
	}
	return []string{}
}

func extractSizes(doc *goquery.Document) []string {
	sizes := make([]string, 0)
	seen := make(map[string]struct{})

	doc.Find("button[class*='size-button'], .size-buttons-size-button").Each(func(_ int, sel *goquery.Selection) {
		size := strings.TrimSpace(sel.Text())
		if size == "" {
			return
		}
		if _, ok := seen[size]; ok {
			return
		}
		seen[size] = struct{}{}
		sizes = append(sizes, size)
	})

	return sizes
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
