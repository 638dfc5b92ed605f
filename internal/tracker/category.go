package tracker

import (
	"strings"

	"github.com/actionsum/focustrack/internal/models"
)

const (
	CategoryBrowser       = "Browser"
	CategoryDevelopment   = "Development"
	CategoryProductivity  = "Productivity"
	CategoryGaming        = "Gaming"
	CategoryCommunication = "Communication"
	CategoryOther         = "Other"
)

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategoryBrowser, []string{"chrome", "firefox", "edge", "safari"}},
	{CategoryDevelopment, []string{"code", "studio", "vim", "emacs", "xcode", "terminal"}},
	{CategoryProductivity, []string{"word", "excel", "powerpoint", "notion", "pages", "numbers", "keynote"}},
	{CategoryGaming, []string{"game", "steam", "epic"}},
	{CategoryCommunication, []string{"discord", "slack", "teams", "messages"}},
}

// CategorizeName guesses a category from an application name.
func CategorizeName(name string) string {
	n := strings.ToLower(name)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(n, kw) {
				return c.category
			}
		}
	}
	return CategoryOther
}

// Categorize returns the stored category when set, otherwise a guess from the
// display name and then the match key.
func Categorize(app *models.TrackedApplication) string {
	if app.Category != "" {
		return app.Category
	}
	if c := CategorizeName(app.DisplayName); c != CategoryOther {
		return c
	}
	return CategorizeName(app.MatchKey)
}
