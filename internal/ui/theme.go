package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// variantTheme forces one light or dark variant of a base theme,
// whatever the system preference is.
type variantTheme struct {
	fyne.Theme
	variant fyne.ThemeVariant
}

func (t *variantTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	return t.Theme.Color(name, t.variant)
}

// themeFor picks the theme for the dark mode toggle and the configured
// theme. With dark mode off, "system" follows the platform.
func themeFor(dark bool, configured string) fyne.Theme {
	switch {
	case dark:
		return &variantTheme{Theme: theme.DefaultTheme(), variant: theme.VariantDark}
	case configured == "system":
		return theme.DefaultTheme()
	}
	return &variantTheme{Theme: theme.DefaultTheme(), variant: theme.VariantLight}
}
