package types

import (
	"strings"
)

const contextLength = 20

// Entity is a labeled span of the input text. Start and End are byte offsets.
type Entity struct {
	Label    string
	Text     string
	Start    int
	End      int
	LContext string
	RContext string
}

func CreateEntity(label string, text string, start int, end int) Entity {
	return Entity{
		Label:    label,
		Text:     strings.ToValidUTF8(text[start:end], ""),
		Start:    start,
		End:      end,
		LContext: strings.ToValidUTF8(text[max(0, start-contextLength):start], ""),
		RContext: strings.ToValidUTF8(text[end:min(len(text), end+contextLength)], ""),
	}
}
