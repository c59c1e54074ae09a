package extract

// Field tables: the ordered strategy cascade for every extracted field,
// one table per record type. Order matters — strategies run from the
// most specific markup hook down to the loosest fallback, and the first
// one with an accepted match wins. Adding a field is a table edit.

const jsonLD = `script[type="application/ld+json"]`

func (e *Extractor) pinFields() []FieldSpec {
	return []FieldSpec{
		{
			Name: "title", Kind: Text, Accept: e.NotBrand,
			Default: "No title available",
			Strategies: []Strategy{
				{Kind: SelectText, Selector: "h1"},
				{Kind: SelectText, Selector: `[data-test-id="pin-title"]`},
				{Kind: SelectText, Selector: ".Pin-title"},
				{Kind: SelectText, Selector: "title"},
				{Kind: SelectAttr, Selector: `meta[property="og:title"]`, Attr: "content"},
				{Kind: SelectText, Selector: `[role="heading"]`},
				{Kind: ScriptJSON, Selector: jsonLD, Key: "name"},
			},
		},
		{
			Name: "description", Kind: Text, Accept: LongerThan(10),
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="pin-description"]`},
				{Kind: SelectText, Selector: ".Pin-description"},
				{Kind: SelectAttr, Selector: `meta[property="og:description"]`, Attr: "content"},
				{Kind: SelectAttr, Selector: `meta[name="description"]`, Attr: "content"},
				{Kind: SelectText, Selector: ".UserDescription span"},
				{Kind: ScriptJSON, Selector: jsonLD, Key: "description"},
				{Kind: PageExcerpt},
			},
		},
		{
			Name: "image_url", Kind: Text, Accept: e.AssetHost,
			Strategies: []Strategy{
				{Kind: SelectAttr, Selector: `img[alt*="Pin"]`, Attr: "src"},
				{Kind: SelectAttr, Selector: ".Pin-image img", Attr: "src"},
				{Kind: SelectAttr, Selector: `meta[property="og:image"]`, Attr: "content"},
				{Kind: SelectAttr, Selector: ".MainContainer img", Attr: "src"},
				{Kind: SelectAttr, Selector: `img[src*="pinimg"]`, Attr: "src"},
				{Kind: ScriptJSON, Selector: jsonLD, Key: "image"},
			},
		},
		{
			Name: "board_name", Kind: Text,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="board-name"]`},
				{Kind: SelectText, Selector: ".boardName"},
				{Kind: SelectText, Selector: `a[href*="/board/"]`},
				{Kind: SelectText, Selector: ".Board-name"},
			},
		},
		{
			Name: "board_url", Kind: Link,
			Strategies: []Strategy{
				{Kind: SelectAttr, Selector: `a[href*="/board/"]`, Attr: "href"},
				{Kind: SelectAttr, Selector: `[data-test-id="board-link"]`, Attr: "href"},
			},
		},
		{
			Name: "pinner_username", Kind: Text,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="pinner-name"]`},
				{Kind: SelectText, Selector: ".pinner-name"},
				{Kind: SelectText, Selector: `a[href*="/user/"]`},
				{Kind: SelectText, Selector: ".UserName"},
			},
		},
		{
			Name: "pinner_name", Kind: Text,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="pinner-full-name"]`},
				{Kind: SelectText, Selector: ".pinner-full-name"},
				{Kind: SelectText, Selector: ".UserDisplayName"},
			},
		},
		{
			Name: "pinner_url", Kind: Link,
			Strategies: []Strategy{
				{Kind: SelectAttr, Selector: `a[href*="/user/"]`, Attr: "href"},
				{Kind: SelectAttr, Selector: `[data-test-id="pinner-link"]`, Attr: "href"},
			},
		},
		{
			Name: "pinner_follower_count", Kind: Count,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="follower-count"]`},
				{Kind: SelectText, Selector: ".follower-count"},
				{Kind: SelectText, Selector: `span:contains("followers")`},
			},
		},
		{
			Name: "pin_likes", Kind: Count,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="like-count"]`},
				{Kind: SelectText, Selector: ".like-count"},
				{Kind: SelectText, Selector: `span:contains("reactions")`},
			},
		},
		{
			Name: "pin_comments", Kind: Count,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="comment-count"]`},
				{Kind: SelectText, Selector: ".comment-count"},
				{Kind: SelectText, Selector: `span:contains("comment")`},
			},
		},
		{
			Name: "pin_repins", Kind: Count,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="save-count"]`},
				{Kind: SelectText, Selector: ".save-count"},
				{Kind: SelectText, Selector: `span:contains("save")`},
			},
		},
		{
			Name: "source_url", Kind: Text, Accept: AbsoluteHTTP,
			Strategies: []Strategy{
				{Kind: SelectAttr, Selector: `a[data-test-id="source-url"]`, Attr: "href"},
				{Kind: SelectAttr, Selector: ".source-link", Attr: "href"},
				{Kind: SelectAttr, Selector: `meta[property="article:author"]`, Attr: "content"},
			},
		},
		{
			Name: "topics", Kind: List, Cap: 5,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: ".topic"},
				{Kind: SelectText, Selector: ".category"},
				{Kind: SelectText, Selector: `[data-test-id="topic"]`},
			},
		},
		{
			Name: "is_shoppable", Kind: Flag,
			Strategies: []Strategy{
				{Selector: ".shopping-icon"},
				{Selector: `[data-test-id="shopping"]`},
				{Selector: ".price-tag"},
				{Selector: `span:contains("Shop")`},
			},
		},
	}
}

func (e *Extractor) boardFields() []FieldSpec {
	return []FieldSpec{
		{
			Name: "board_name", Kind: Text, Accept: e.NotBrand,
			Default: "No name available",
			Strategies: []Strategy{
				{Kind: SelectText, Selector: "h1"},
				{Kind: SelectText, Selector: `[data-test-id="board-name"]`},
				{Kind: SelectText, Selector: ".boardName"},
				{Kind: SelectText, Selector: "title"},
				{Kind: SelectAttr, Selector: `meta[property="og:title"]`, Attr: "content"},
				{Kind: SelectText, Selector: `[role="heading"]`},
			},
		},
		{
			Name: "description", Kind: Text, Accept: LongerThan(10),
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="board-description"]`},
				{Kind: SelectText, Selector: ".boardDescription"},
				{Kind: SelectAttr, Selector: `meta[property="og:description"]`, Attr: "content"},
				{Kind: SelectAttr, Selector: `meta[name="description"]`, Attr: "content"},
				{Kind: SelectText, Selector: ".BoardDescription span"},
			},
		},
		{
			Name: "category", Kind: Text,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: ".boardCategory"},
				{Kind: SelectText, Selector: `[data-test-id="category"]`},
				{Kind: SelectText, Selector: ".category"},
			},
		},
		{
			Name: "owner_username", Kind: Text,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="board-owner"]`},
				{Kind: SelectText, Selector: ".boardOwner"},
				{Kind: SelectText, Selector: `a[href*="/user/"]`},
				{Kind: SelectText, Selector: ".UserName"},
			},
		},
		{
			Name: "owner_name", Kind: Text,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="board-owner-full-name"]`},
				{Kind: SelectText, Selector: ".boardOwner-full-name"},
				{Kind: SelectText, Selector: ".UserDisplayName"},
			},
		},
		{
			Name: "owner_url", Kind: Link,
			Strategies: []Strategy{
				{Kind: SelectAttr, Selector: `a[href*="/user/"]`, Attr: "href"},
				{Kind: SelectAttr, Selector: `[data-test-id="board-owner-link"]`, Attr: "href"},
			},
		},
		{
			Name: "pin_count", Kind: Count,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="pin-count"]`},
				{Kind: SelectText, Selector: ".pin-count"},
				{Kind: SelectText, Selector: `span:contains("pins")`},
			},
		},
		{
			Name: "follower_count", Kind: Count,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="follower-count"]`},
				{Kind: SelectText, Selector: ".follower-count"},
				{Kind: SelectText, Selector: `span:contains("followers")`},
			},
		},
		{
			Name: "collaborator_count", Kind: Count,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="collaborator-count"]`},
				{Kind: SelectText, Selector: ".collaborator-count"},
				{Kind: SelectText, Selector: `span:contains("collaborators")`},
			},
		},
		{
			Name: "is_collaborative", Kind: Flag,
			Strategies: []Strategy{
				{Selector: ".collaborative-board"},
				{Selector: `[data-test-id="collaborative"]`},
				{Selector: `span:contains("Collaborative")`},
			},
		},
		{
			Name: "topics", Kind: List, Cap: 5,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: ".topic"},
				{Kind: SelectText, Selector: ".category"},
				{Kind: SelectText, Selector: `[data-test-id="topic"]`},
			},
		},
	}
}

func (e *Extractor) userFields() []FieldSpec {
	return []FieldSpec{
		{
			Name: "full_name", Kind: Text, Accept: e.NotBrand,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: "h1"},
				{Kind: SelectText, Selector: `[data-test-id="profile-name"]`},
				{Kind: SelectAttr, Selector: `meta[property="og:title"]`, Attr: "content"},
				{Kind: SelectText, Selector: ".UserDisplayName"},
			},
		},
		{
			Name: "bio", Kind: Text, Accept: LongerThan(10),
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="profile-about"]`},
				{Kind: SelectText, Selector: ".UserAbout"},
				{Kind: SelectAttr, Selector: `meta[property="og:description"]`, Attr: "content"},
				{Kind: SelectAttr, Selector: `meta[name="description"]`, Attr: "content"},
			},
		},
		{
			Name: "location", Kind: Text,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="profile-location"]`},
				{Kind: SelectText, Selector: ".UserLocation"},
			},
		},
		{
			Name: "profile_image", Kind: Text, Accept: e.AssetHost,
			Strategies: []Strategy{
				{Kind: SelectAttr, Selector: `[data-test-id="profile-image"] img`, Attr: "src"},
				{Kind: SelectAttr, Selector: `meta[property="og:image"]`, Attr: "content"},
				{Kind: SelectAttr, Selector: `img[src*="pinimg"]`, Attr: "src"},
			},
		},
		{
			Name: "website_url", Kind: Text, Accept: AbsoluteHTTP,
			Strategies: []Strategy{
				{Kind: SelectAttr, Selector: `a[data-test-id="website-url"]`, Attr: "href"},
				{Kind: SelectAttr, Selector: ".website-link", Attr: "href"},
			},
		},
		{
			Name: "verified", Kind: Flag,
			Strategies: []Strategy{
				{Selector: `[data-test-id="verified-badge"]`},
				{Selector: ".verified-badge"},
			},
		},
		{
			Name: "follower_count", Kind: Count,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="follower-count"]`},
				{Kind: SelectText, Selector: ".follower-count"},
				{Kind: SelectText, Selector: `span:contains("followers")`},
			},
		},
		{
			Name: "following_count", Kind: Count,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="following-count"]`},
				{Kind: SelectText, Selector: ".following-count"},
				{Kind: SelectText, Selector: `span:contains("following")`},
			},
		},
		{
			Name: "pin_count", Kind: Count,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="pin-count"]`},
				{Kind: SelectText, Selector: ".pin-count"},
				{Kind: SelectText, Selector: `span:contains("pins")`},
			},
		},
		{
			Name: "board_count", Kind: Count,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: `[data-test-id="board-count"]`},
				{Kind: SelectText, Selector: ".board-count"},
				{Kind: SelectText, Selector: `span:contains("boards")`},
			},
		},
		{
			Name: "top_categories", Kind: List, Cap: 5,
			Strategies: []Strategy{
				{Kind: SelectText, Selector: ".topic"},
				{Kind: SelectText, Selector: ".category"},
				{Kind: SelectText, Selector: `[data-test-id="topic"]`},
			},
		},
	}
}
