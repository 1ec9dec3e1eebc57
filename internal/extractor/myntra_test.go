package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewatch/product-scraper/internal/models"
)

func TestMyntraResolveURL(t *testing.T) {
	m := NewMyntra(models.AvailabilityInStock)

	tests := []struct {
		name     string
		input    string
		expected string
		hasError bool
	}{
		{
			name:     "bare numeric product id",
			input:    "12345678",
			expected: "https://www.myntra.com/products/12345678",
		},
		{
			name:     "full product URL",
			input:    "https://www.myntra.com/tshirts/roadster/roadster-men-tshirt/12345678/buy",
			expected: "https://www.myntra.com/tshirts/roadster/roadster-men-tshirt/12345678/buy",
		},
		{
			name:     "site-relative path",
			input:    "/tshirts/roadster/roadster-men-tshirt/12345678/buy",
			expected: "https://www.myntra.com/tshirts/roadster/roadster-men-tshirt/12345678/buy",
		},
		{
			name:     "foreign host rejected",
			input:    "https://example.com/products/12345678",
			hasError: true,
		},
		{
			name:     "empty input rejected",
			input:    "   ",
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.ResolveURL(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMyntraDeriveKey(t *testing.T) {
	m := NewMyntra(models.AvailabilityInStock)

	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "canonical product URL",
			url:      "https://www.myntra.com/products/12345678",
			expected: "12345678",
		},
		{
			name:     "query parameters ignored",
			url:      "https://www.myntra.com/products/12345678?utm_source=share&ref=home",
			expected: "12345678",
		},
		{
			name:     "buy suffix keeps product id",
			url:      "https://www.myntra.com/tshirts/roadster/roadster-men-tshirt/12345678/buy",
			expected: "12345678",
		},
		{
			name:     "trailing slash",
			url:      "https://www.myntra.com/products/12345678/",
			expected: "12345678",
		},
		{
			name:     "non-numeric slug passes through",
			url:      "https://www.myntra.com/some-campaign-page",
			expected: "some-campaign-page",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, m.DeriveKey(tt.url))
		})
	}
}

func TestMyntraExtractDefaultsOnEmptyMarkup(t *testing.T) {
	m := NewMyntra(models.AvailabilityInStock)

	record := m.Extract("")

	assert.Equal(t, models.DefaultTitle, record.Title)
	assert.Equal(t, models.DefaultBrand, record.Brand)
	assert.Equal(t, models.DefaultPrice, record.Price)
	assert.Equal(t, models.AvailabilityInStock, record.Availability)
	assert.NotNil(t, record.Images)
	assert.NotNil(t, record.AvailableSizes)
	assert.Empty(t, record.Images)
	assert.Empty(t, record.AvailableSizes)
}

func TestMyntraExtractDefaultAvailabilityConfigurable(t *testing.T) {
	m := NewMyntra(models.AvailabilityUnknown)

	record := m.Extract("<html><body><h1>Roadster Tshirt</h1></body></html>")
	assert.Equal(t, models.AvailabilityUnknown, record.Availability)
}

func TestMyntraExtractFromSelectors(t *testing.T) {
	m := NewMyntra(models.AvailabilityInStock)

	html := `<html><body>
		<div class="pdp-title"><span class="brand-name">Roadster</span><h1>Men Solid Round Neck T-shirt</h1></div>
		<div class="pdp-price"><span class="selling-price"><strong>₹ 1,299</strong></span></div>
		<div class="pdp-product-description">Navy blue solid T-shirt.</div>
		<div class="size-buttons">
			<button class="size-buttons-size-button">S</button>
			<button class="size-buttons-size-button">M</button>
			<button class="size-buttons-size-button">M</button>
		</div>
	</body></html>`

	record := m.Extract(html)

	assert.Equal(t, "Men Solid Round Neck T-shirt", record.Title)
	assert.Equal(t, "Roadster", record.Brand)
	assert.Equal(t, "1299", record.Price)
	assert.Equal(t, "Navy blue solid T-shirt.", record.Description)
	assert.Equal(t, []string{"S", "M"}, record.AvailableSizes)
	assert.Equal(t, models.AvailabilityInStock, record.Availability)
}

func TestMyntraExtractPriceRejectsProductIDs(t *testing.T) {
	m := NewMyntra(models.AvailabilityInStock)

	// Eight digits without a currency marker in a price-classed
	// element must not be mistaken for a price.
	html := `<html><body>
		<div class="price-value">12345678</div>
		<span class="pdp-price"><strong>Rs. 999</strong></span>
	</body></html>`

	record := m.Extract(html)
	assert.Equal(t, "999", record.Price)
}

func TestMyntraExtractStructuredData(t *testing.T) {
	m := NewMyntra(models.AvailabilityInStock)

	html := `<html><head>
		<script type="application/ld+json">
		{
			"@type": "Product",
			"name": "HRX Running Shoes",
			"description": "Lightweight running shoes.",
			"brand": {"name": "HRX"},
			"image": ["https://assets.myntra.com/a.jpg", "https://assets.myntra.com/b.jpg"],
			"offers": {"price": 2499, "availability": "https://schema.org/InStock"}
		}
		</script>
	</head><body></body></html>`

	record := m.Extract(html)

	assert.Equal(t, "HRX Running Shoes", record.Title)
	assert.Equal(t, "HRX", record.Brand)
	assert.Equal(t, "2499", record.Price)
	assert.Equal(t, "Lightweight running shoes.", record.Description)
	assert.Equal(t, []string{"https://assets.myntra.com/a.jpg", "https://assets.myntra.com/b.jpg"}, record.Images)
	assert.Equal(t, models.AvailabilityInStock, record.Availability)
}

func TestMyntraExtractStructuredDataStringBrand(t *testing.T) {
	m := NewMyntra(models.AvailabilityInStock)

	html := `<html><head>
		<script type="application/ld+json">
		{"@type": "Product", "name": "Puma Cap", "brand": "Puma", "image": "https://assets.myntra.com/cap.jpg", "price": "799"}
		</script>
	</head><body></body></html>`

	record := m.Extract(html)

	assert.Equal(t, "Puma", record.Brand)
	assert.Equal(t, "799", record.Price)
	assert.Equal(t, []string{"https://assets.myntra.com/cap.jpg"}, record.Images)
}

func TestMyntraExtractOutOfStock(t *testing.T) {
	m := NewMyntra(models.AvailabilityInStock)

	tests := []struct {
		name string
		html string
	}{
		{
			name: "page text marker",
			html: `<html><body><h1>Roadster Tshirt</h1><div class="size-buttons">Out of Stock</div></body></html>`,
		},
		{
			name: "structured data marker",
			html: `<html><head><script type="application/ld+json">
				{"@type": "Product", "name": "Roadster Tshirt", "offers": {"price": 999, "availability": "https://schema.org/OutOfStock"}}
			</script></head><body></body></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := m.Extract(tt.html)
			assert.Equal(t, models.AvailabilityOutOfStock, record.Availability)
		})
	}
}

func TestMyntraExtractTitleFallback(t *testing.T) {
	m := NewMyntra(models.AvailabilityInStock)

	html := `<html><head><title>Nike Air Zoom Pegasus | Myntra</title></head><body><p>no product markup</p></body></html>`

	record := m.Extract(html)

	assert.Equal(t, "Nike Air Zoom Pegasus", record.Title)
	assert.Equal(t, "Nike", record.Brand)
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(NewMyntra(models.AvailabilityInStock))

	ext, err := r.Lookup(SiteMyntra)
	require.NoError(t, err)
	assert.Equal(t, SiteMyntra, ext.Site())

	_, err = r.Lookup("amazon")
	assert.ErrorIs(t, err, ErrUnknownSite)
}
