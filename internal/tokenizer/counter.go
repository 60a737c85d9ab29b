package tokenizer

const (
	// Per-message overhead tokens (<|start|>role<|end|>)
	messageOverhead = 3

	// Reply priming tokens (assistant response start)
	replyPrimingTokens = 3

	// Image cost: a base charge plus one charge per 512x512 tile
	imageBaseTokens = 85
	imageTileTokens = 170
	imageTileSize   = 512
)

// CountPrompt estimates prompt tokens for a single user message holding one
// image and the instruction text.
func (t *TiktokenTokenizer) CountPrompt(instruction string, width, height int, model string) int {
	total := messageOverhead + replyPrimingTokens
	total += t.CountCompletion("user", model)
	total += t.CountCompletion(instruction, model)
	total += countImageTokens(width, height)
	return total
}

// countImageTokens charges the base cost plus one tile per started
// 512x512 block. Unknown dimensions count as a single tile.
func countImageTokens(width, height int) int {
	if width <= 0 || height <= 0 {
		return imageBaseTokens + imageTileTokens
	}
	tilesW := (width + imageTileSize - 1) / imageTileSize
	tilesH := (height + imageTileSize - 1) / imageTileSize
	return imageBaseTokens + tilesW*tilesH*imageTileTokens
}
