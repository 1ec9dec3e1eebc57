package models

type Availability string

const (
	AvailabilityInStock    Availability = "in_stock"
	AvailabilityOutOfStock Availability = "out_of_stock"
	AvailabilityUnknown    Availability = "unknown"
)

const (
	DefaultTitle = "Unknown Product"
	DefaultBrand = "Unknown Brand"
	DefaultPrice = "N/A"
)

// ProductRecord is the extracted product entity. Every field has an
// explicit default so a partially parsed page still yields a usable
// record instead of a failure.
type ProductRecord struct {
	ID             string       `json:"id"`
	Site           string       `json:"site"`
	Title          string       `json:"title"`
	Brand          string       `json:"brand"`
	Price          string       `json:"price"`
	Description    string       `json:"description"`
	Availability   Availability `json:"availability"`
	Images         []string     `json:"images"`
	AvailableSizes []string     `json:"available_sizes"`
}

// DefaultRecord returns a record with best-effort defaults for every
// field. Extractors start from this and overwrite what they find.
func DefaultRecord(site string, availability Availability) ProductRecord {
	return ProductRecord{
		Site:           site,
		Title:          DefaultTitle,
		Brand:          DefaultBrand,
		Price:          DefaultPrice,
		Availability:   availability,
		Images:         make([]string, 0),
		AvailableSizes: make([]string, 0),
	}
}

// ScrapeResult is the envelope every public operation returns. Errors
// are carried as values; nothing in the scrape path panics past a
// request boundary.
type ScrapeResult struct {
	Success bool           `json:"success"`
	Data    *ProductRecord `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Details string         `json:"details,omitempty"`
}

func Failure(category, details string) ScrapeResult {
	return ScrapeResult{Success: false, Error: category, Details: details}
}

func Succeeded(record *ProductRecord) ScrapeResult {
	return ScrapeResult{Success: true, Data: record}
}
