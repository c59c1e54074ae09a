package models

// Schema declares the per-type structural contract the pipeline enforces:
// which fields must be present, which are numeric counts, which must look
// like absolute URLs, and which identifier fields get cosmetic cleanup.
// The export column order for strict-header mode is FieldOrder.
type Schema struct {
	// FieldOrder is the full declared field set in export order.
	FieldOrder []string

	// Required fields abort the run when missing or empty.
	Required []string

	// Numeric fields are canonicalised through the count normalizer.
	Numeric []string

	// URLFields are reset to "" when they fail the absolute-URL check.
	URLFields []string

	// HandleFields are identifier-like text fields stripped of marker
	// characters ("@") and surrounding whitespace.
	HandleFields []string

	// IdentityField is the primary dedup key field.
	IdentityField string

	// IdentityFallback is used when the primary field is empty.
	IdentityFallback string

	// IdentityComposite, when set, joins these fields with "_" to form
	// the dedup key when both primary and fallback are empty (or, for
	// search results, always — a query+result pair is the identity).
	IdentityComposite []string
}

// Schemas maps every record type to its structural contract.
var Schemas = map[RecordType]Schema{
	TypePin: {
		FieldOrder: []string{
			"pin_id", "pin_url", "title", "description", "image_url",
			"media_type", "board_name", "board_url", "pinner_username",
			"pinner_name", "pinner_url", "pinner_follower_count",
			"pin_likes", "pin_comments", "pin_repins", "engagement_rate",
			"source_url", "source_domain", "tags", "topics",
			"is_shoppable", "product_price", "rich_metadata",
			"scraped_at", "scraper_version",
		},
		Required:      []string{"pin_id", "title", "image_url"},
		Numeric:       []string{"pin_likes", "pin_comments", "pin_repins", "pinner_follower_count"},
		URLFields:     []string{"pin_url"},
		IdentityField: "pin_id", IdentityFallback: "pin_url",
	},
	TypeBoard: {
		FieldOrder: []string{
			"board_id", "board_url", "board_name", "description",
			"category", "owner_username", "owner_name", "owner_url",
			"pin_count", "follower_count", "collaborator_count",
			"privacy", "is_collaborative", "tags", "topics",
			"sample_pins", "scraped_at",
		},
		Required:      []string{"board_id", "board_name"},
		Numeric:       []string{"pin_count", "follower_count", "collaborator_count"},
		URLFields:     []string{"board_url"},
		IdentityField: "board_id", IdentityFallback: "board_url",
	},
	TypeUser: {
		FieldOrder: []string{
			"user_id", "username", "profile_url", "full_name", "bio",
			"location", "profile_image", "website_url", "verified",
			"follower_count", "following_count", "pin_count",
			"board_count", "avg_pins_per_board", "top_categories",
			"scraped_at",
		},
		Required:     []string{"user_id", "username"},
		Numeric:      []string{"follower_count", "following_count", "pin_count", "board_count"},
		URLFields:    []string{"profile_url", "website_url"},
		HandleFields: []string{"username"},
		IdentityField: "user_id", IdentityFallback: "username",
	},
	TypeSearchResult: {
		FieldOrder: []string{
			"search_query", "search_type", "search_url", "result_type",
			"result_id", "result_url", "result_title",
			"result_description", "thumbnail_url", "creator_name",
			"position_in_results", "total_results", "search_suggestions",
			"scraped_at", "search_timestamp",
		},
		Required:          []string{"search_query", "result_type"},
		Numeric:           []string{"position_in_results", "total_results"},
		URLFields:         []string{"result_url"},
		IdentityComposite: []string{"search_query", "result_id"},
	},
	TypeTrend: {
		FieldOrder: []string{
			"trend_id", "trend_type", "trend_name", "position",
			"trending_period", "trending_region", "sample_pins",
			"scraped_at",
		},
		Numeric:       []string{"position"},
		IdentityField: "trend_id", IdentityFallback: "trend_name",
	},
}

// IdentityKey derives the dedup key for a record per its type's schema.
// Composite keys join their parts with "_" so that two unrelated records
// with empty identifiers never collide on the empty string.
func IdentityKey(r *Record) string {
	s, ok := Schemas[r.Type]
	if !ok {
		return r.String("scraped_at")
	}
	if len(s.IdentityComposite) > 0 {
		key := ""
		for i, f := range s.IdentityComposite {
			if i > 0 {
				key += "_"
			}
			key += r.String(f)
		}
		return key
	}
	if id := r.String(s.IdentityField); id != "" {
		return id
	}
	return r.String(s.IdentityFallback)
}
