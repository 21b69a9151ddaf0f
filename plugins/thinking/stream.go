package thinking

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/BaSui01/mtplugins/plugin"
)

const (
	headerThinking    = "🤔 [Deep Thinking]\n"
	headerTranslation = "\n\n🚀 [Translation]\n"

	sseDone = "data: [DONE]"
)

// Delta is the incremental payload of one stream chunk.
type Delta struct {
	Reasoning string
	Content   string
}

// ParseChunk decodes one SSE line. ok is false for blank lines, the [DONE]
// sentinel and anything that is not a JSON chunk with a choices array.
func ParseChunk(line string) (Delta, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line == sseDone {
		return Delta{}, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "" || !gjson.Valid(payload) {
		return Delta{}, false
	}
	choices := gjson.Get(payload, "choices")
	if !choices.IsArray() {
		return Delta{}, false
	}
	delta := choices.Get("0.delta")
	return Delta{
		Reasoning: delta.Get("reasoning_content").String(),
		Content:   delta.Get("content").String(),
	}, true
}

// StreamAccumulator writes chunks into a Result, inserting the section
// headers. It must be fed from a single goroutine.
type StreamAccumulator struct {
	res           *plugin.Result
	showReasoning bool

	printedThinking    bool
	printedTranslation bool
	inThinking         bool

	chunks  int
	skipped int
}

// NewStreamAccumulator returns an accumulator appending to res. Reasoning
// tokens are dropped unless showReasoning is set.
func NewStreamAccumulator(res *plugin.Result, showReasoning bool) *StreamAccumulator {
	return &StreamAccumulator{res: res, showReasoning: showReasoning}
}

// Feed parses and applies one raw line.
func (a *StreamAccumulator) Feed(line string) {
	d, ok := ParseChunk(line)
	if !ok {
		if strings.TrimSpace(line) != "" && strings.TrimSpace(line) != sseDone {
			a.skipped++
		}
		return
	}
	a.Apply(d)
}

// Apply appends d to the result.
func (a *StreamAccumulator) Apply(d Delta) {
	a.chunks++
	if a.showReasoning && d.Reasoning != "" {
		if !a.printedThinking {
			a.res.Append(headerThinking)
			a.printedThinking = true
			a.inThinking = true
		}
		a.res.Append(d.Reasoning)
	}
	if d.Content != "" {
		if a.inThinking {
			if !a.printedTranslation {
				a.res.Append(headerTranslation)
				a.printedTranslation = true
			}
			a.inThinking = false
		}
		a.res.Append(d.Content)
	}
}

// Chunks is the number of chunks applied.
func (a *StreamAccumulator) Chunks() int { return a.chunks }

// Skipped is the number of non-blank lines that could not be parsed.
func (a *StreamAccumulator) Skipped() int { return a.skipped }
