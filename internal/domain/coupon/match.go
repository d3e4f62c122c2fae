package coupon

import "strings"

// Matching is tag-based: an item exposes a lowercase tag set built from its
// id, name, type, variant name, and a composite "<id>|v:<variant>" tag. A
// coupon applies when any of its rule tokens matches any tag (OR across
// tokens).
//
// A few tokens carry special meaning:
//
//	todos / all / any  matches unconditionally
//	productos / store  matches store products only (type equality)
//	prewedding         matches prewedding items but never their teaser
//	                   sub-items, which are sold separately
//
// Every other token is a plain substring match against the tag set, which
// covers the category tokens (portrait, maternity, events) as well as
// literal item ids.

// Applies reports whether a rule token set matches the item. An empty or
// absent token set applies to everything.
func Applies(appliesTo []string, it Item) bool {
	if len(appliesTo) == 0 {
		return true
	}

	tags := tagSet(it)

	for _, raw := range appliesTo {
		tok := strings.ToLower(strings.TrimSpace(raw))
		switch tok {
		case "":
			continue
		case "todos", "all", "any":
			return true
		case "productos", "store":
			if strings.EqualFold(it.Type, "store") {
				return true
			}
		case "prewedding":
			if anyTagContains(tags, "prewedding") && !anyTagContains(tags, "teaser") {
				return true
			}
		default:
			if anyTagContains(tags, tok) {
				return true
			}
		}
	}
	return false
}

// tagSet builds the lowercase tags an item is matched against.
func tagSet(it Item) []string {
	tags := make([]string, 0, 5)
	for _, s := range []string{it.ID, it.Name, it.Type} {
		if s != "" {
			tags = append(tags, strings.ToLower(s))
		}
	}
	if it.VariantName != "" {
		tags = append(tags,
			strings.ToLower(it.VariantName),
			strings.ToLower(it.ID+"|v:"+it.VariantName),
		)
	}
	return tags
}

func anyTagContains(tags []string, sub string) bool {
	for _, tag := range tags {
		if strings.Contains(tag, sub) {
			return true
		}
	}
	return false
}
