package normalizer

// Fields lists the field-name synonyms used to locate answers in a payload.
// Supporting a new backend shape is a change to these tables, not to code.
type Fields struct {
	// Text fields, in priority order. First non-empty string wins.
	Text []string
	// Image fields on a payload object, in priority order.
	Images []string
	// URL-bearing fields of an object found inside an image field.
	ObjectURL []string
	// Fields holding a wrapped payload that replaces the root.
	Nested []string
	// Path extensions accepted when scanning plain text for image URLs.
	ImageExtensions []string
}

// DefaultFields covers the REST chat API and the known webhook flows.
var DefaultFields = Fields{
	Text: []string{
		"text",
		"answer",
		"reply",
		"response",
		"message",
		"content",
		"result",
		"output_text",
		"output",
	},
	Images: []string{
		"imageUrls",
		"image_urls",
		"images",
		"imageUrl",
		"image_url",
		"image",
		"img",
		"photos",
		"pictures",
		"attachments",
		"media",
	},
	ObjectURL: []string{
		"imageUrls",
		"image_urls",
		"images",
		"imageUrl",
		"image_url",
		"image",
		"img",
		"url",
		"src",
		"href",
		"link",
	},
	Nested: []string{"output", "data"},
	ImageExtensions: []string{
		".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".bmp", ".avif",
	},
}
