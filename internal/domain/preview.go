package domain

// Preview is the metadata a preview provider returns for a URL.
// Every field is optional.
type Preview struct {
	URL         string `json:"url,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Site        string `json:"site"`
}
