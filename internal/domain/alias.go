package domain

// Aliases rewrites raw station-assigned device ids to friendly names.
// The engine only reads it.
type Aliases map[string]string

// Resolve returns the alias for rawID, or rawID itself when none is set.
func (a Aliases) Resolve(rawID string) string {
	if alias, ok := a[rawID]; ok && alias != "" {
		return alias
	}
	return rawID
}
