package describer

import (
	"fmt"
	"strings"
)

// systemPrompt primes the model to emit image-search tags, one short
// concrete phrase per line, keeping narrative continuity between
// neighboring lines.
const systemPrompt = `You turn song lyric lines into image-search phrases.

Respond with exactly one short concrete visual phrase of 2-6 lowercase words
naming the core subject, action, or object. No articles, prepositions, or
filler words. No punctuation, quotes, or explanation.

Keep narrative continuity: the previous and next lines describe the same
scene, so prefer a subtle shift of the current image (new camera angle,
another object in the scene, a changed mood adjective) over an unrelated
picture. Translate abstract ideas into simple visual icons: love becomes
heart shape, sadness becomes rain cloud, an idea becomes lightbulb. For pure
vocalization (la la, ooh) answer with the nearest mood image such as glowing
stage lights.`

// buildUserPrompt assembles the per-line request with song context.
func buildUserPrompt(req Request) string {
	var b strings.Builder
	if title := strings.TrimSpace(req.SongTitle); title != "" {
		fmt.Fprintf(&b, "Song: %s\n", title)
	}
	if before := strings.TrimSpace(req.Before); before != "" {
		fmt.Fprintf(&b, "Previous line: %s\n", before)
	}
	if after := strings.TrimSpace(req.After); after != "" {
		fmt.Fprintf(&b, "Next line: %s\n", after)
	}
	fmt.Fprintf(&b, "\nLyric line: %s", strings.TrimSpace(req.Line))
	return b.String()
}

// cleanDescription reduces a model response to the single phrase the index
// query needs. Models occasionally echo a label or wrap the answer in
// quotes; both are stripped.
func cleanDescription(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, prefix := range []string{"SENTENCE:", "Sentence:", "sentence:", "PHRASE:", "Phrase:"} {
			line = strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
		line = strings.Trim(line, "\"'`")
		line = strings.TrimSuffix(line, ".")
		return strings.TrimSpace(line)
	}
	return ""
}
