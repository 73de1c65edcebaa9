package entity

import "strings"

// SnakeCase converts a registered field name like "SpriteID" or
// "PublicName" into its default column name (sprite_id, public_name).
// Consecutive capitals are treated as one initialism.
func SnakeCase(name string) string {
	var sb strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevUpper := runes[i-1] >= 'A' && runes[i-1] <= 'Z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if !prevUpper || nextLower {
				sb.WriteByte('_')
			}
		}
		if upper {
			sb.WriteRune(r - 'A' + 'a')
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
