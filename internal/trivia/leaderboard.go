package trivia

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lox/kenny/internal/chat"
	"github.com/lox/kenny/internal/storage"
)

var medals = []string{"🥇", "🥈", "🥉"}

// FormatLeaderboard renders the end-of-game message. Scores are shown highest
// first; equal scores keep their input order.
func FormatLeaderboard(scores []storage.Score) string {
	if len(scores) == 0 {
		return "*Game Over!* Nobody scored this time. Better luck next game!"
	}

	ordered := append([]storage.Score(nil), scores...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Score > ordered[j].Score })

	lines := make([]string, 0, len(ordered)+1)
	lines = append(lines, "*Game Over!* Here are the top scores:")
	for i, s := range ordered {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		lines = append(lines, fmt.Sprintf("%s %s: %d", rank, chat.Mention(s.User), s.Score))
	}
	return strings.Join(lines, "\n")
}
