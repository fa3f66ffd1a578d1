package selectors

// DefaultVersion tags the built-in catalog.
const DefaultVersion = "builtin-2025.06"

func css(selectors ...string) []Expr {
	exprs := make([]Expr, len(selectors))
	for i, s := range selectors {
		exprs[i] = Expr{CSS: s}
	}
	return exprs
}

// DefaultDefinition returns the built-in catalog for the current group
// feed markup.
func DefaultDefinition() Definition {
	return Definition{
		Version:          DefaultVersion,
		PostRole:         "article",
		PostTestIDMarker: "post",
		ModernPostClasses: [][]string{
			{"x1yztbdb", "x1n2onr6", "xh8yej3"},
			{"x1lliihq", "x1n2onr6"},
		},
		Fields: map[Field][]Expr{
			FieldPostContainer: css(
				"div[role='article']",
				"div[data-testid*='post']",
				"div[aria-posinset]",
			),
			FieldPostMessage: css(
				"[data-ad-preview='message']",
				"[data-testid='post_message']",
				"div[data-ad-comet-preview='message']",
				"[data-ad-rendering-role='story_message']",
				"[class*='post_content']",
				"div[dir='auto']",
			),
			FieldAuthor: css(
				"h3 a",
				"h2 a",
				"[data-testid='post_author_link']",
				"[class*='author'] a",
				"strong a",
			),
			FieldTimestamp: css(
				"a[href*='/permalink/']",
				"abbr",
				"[class*='timestamp']",
				"a[href*='/posts/'] span",
			),
			FieldPermalink: css(
				"a[href*='/permalink/']",
				"a[href*='/posts/']",
				"a[href*='/story/']",
			),
			FieldPostID: css(
				"[data-testid='post_id']",
				"a[href*='/permalink/']",
				"[data-ft*='post_id']",
			),
			FieldLikes: css(
				"[data-testid='like_count']",
				"[aria-label*='like']",
				"[aria-label*='reaction']",
				"span[class*='like']",
			),
			FieldComments: css(
				"[data-testid='comment_count']",
				"[aria-label*='comment']",
				"span[class*='comment']",
			),
			FieldShares: css(
				"[data-testid='share_count']",
				"[aria-label*='share']",
				"span[class*='share']",
			),
			FieldEngagement: css(
				"[data-testid='UFI2ReactionsCount/root']",
				"[aria-label*='reaction']",
				"[aria-label*='Like']",
				"[data-testid='like_count']",
				"[data-testid='comment_count']",
				"[data-testid='share_count']",
			),
			FieldExpandButton: {
				{CSS: "div[role='button']", TextContains: []string{"See more", "Xem thêm", "Ver más", "Voir plus", "Mehr anzeigen"}},
				{CSS: "[data-testid='see_more']"},
			},
			FieldComment: css(
				"[data-testid='comment']",
				"[data-testid='UFI2Comment/root_depth_0']",
				"div[aria-label^='Comment by']",
			),
			FieldReply: css(
				"[data-testid='reply']",
				"[data-testid='UFI2Comment/root_depth_1']",
				"div[aria-label^='Reply by']",
			),
			FieldCommentIndicator: css(
				"[data-testid='comment-indicator']",
				"[data-testid='UFI2CommentsList/root_depth_0']",
				"[data-testid='messenger_chat_bubble']",
			),
			FieldImages: css(
				"img[src*='scontent']",
				"img[src*='fbcdn']",
				"a[href*='/photo'] img",
			),
			FieldGroupName: css(
				"h1[data-testid='group_name']",
				"h1[class*='group']",
				"h1",
			),
			FieldLoggedIn: css(
				"[data-testid='blue_bar_profile_link']",
				"[aria-label='Your profile']",
				"[data-testid='pagelet_welcome_box']",
				"[data-testid='nav_bar_profile']",
			),
			FieldLoginEmail: css(
				"#email",
				"input[name='email']",
			),
			FieldLoginPassword: css(
				"#pass",
				"input[name='pass']",
			),
			FieldLoginButton: css(
				"[name='login']",
				"button[type='submit']",
			),
		},
	}
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(DefaultDefinition())
	if err != nil {
		panic("selectors: invalid built-in catalog: " + err.Error())
	}
	return c
}
