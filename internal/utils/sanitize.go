package utils

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicy    *bluemonday.Policy
	strictPolicy *bluemonday.Policy
	policyOnce   sync.Once
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	policyOnce.Do(func() {
		ugcPolicy = bluemonday.UGCPolicy()
		strictPolicy = bluemonday.StrictPolicy()
	})
	return ugcPolicy, strictPolicy
}

// SanitizeHTML keeps basic formatting in user content (posts, comments) and drops scripts and handlers.
func SanitizeHTML(s string) string {
	ugc, _ := policies()
	return strings.TrimSpace(ugc.Sanitize(s))
}

// SanitizeText strips every tag. Used for single-line fields such as titles.
func SanitizeText(s string) string {
	_, strict := policies()
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
