package domain

// DedupeResources keeps the first occurrence of each URL, preserving order.
// Links without a URL have no natural key and are always kept.
func DedupeResources(links []ResourceLink) []ResourceLink {
	result := make([]ResourceLink, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		if link.URL != "" {
			if _, dup := seen[link.URL]; dup {
				continue
			}
			seen[link.URL] = struct{}{}
		}
		result = append(result, link)
	}
	return result
}

// DedupeSources applies the same first-wins rule as DedupeResources.
func DedupeSources(sources []SourceReference) []SourceReference {
	result := make([]SourceReference, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if src.URL != "" {
			if _, dup := seen[src.URL]; dup {
				continue
			}
			seen[src.URL] = struct{}{}
		}
		result = append(result, src)
	}
	return result
}

func CapResources(links []ResourceLink, limit int) []ResourceLink {
	if limit >= 0 && len(links) > limit {
		return links[:limit]
	}
	return links
}

func CapSources(sources []SourceReference, limit int) []SourceReference {
	if limit >= 0 && len(sources) > limit {
		return sources[:limit]
	}
	return sources
}
