package scout

// Caps applied to every list that ends up on screen.
const (
	MaxListItems       = 10
	MaxMenuItems       = 12
	MaxCallScriptItems = 15
	MaxAlternatives    = 5
	MaxIngredients     = 40
)

// Cap returns at most n leading elements of items, preserving order.
func Cap[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
