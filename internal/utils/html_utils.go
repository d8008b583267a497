package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EnhanceHTML adds loading and referrer attributes to images in already
// sanitized HTML.
func EnhanceHTML(htmlStr string) string {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr
	}

	found := false
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		found = true
		s.SetAttr("referrerpolicy", "no-referrer")
		s.SetAttr("loading", "lazy")
		s.SetAttr("decoding", "async")
	})
	if !found {
		return htmlStr
	}

	out, err := doc.Find("body").Html()
	if err != nil || out == "" {
		return htmlStr
	}
	return out
}
