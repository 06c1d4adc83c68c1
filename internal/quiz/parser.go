package quiz

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// Provider output arrives in one of two shapes: records carrying an explicit
// correctAnswerIndex, or older records naming the answer by its text.
type recordShape int

const (
	shapeUnknown recordShape = iota
	shapeIndexed
	shapeAnswered
)

type rawRecord struct {
	Question           *string         `json:"question"`
	Choices            []string        `json:"choices"`
	CorrectAnswerIndex json.RawMessage `json:"correctAnswerIndex"`
	Answer             *string         `json:"answer"`
	Explanation        *string         `json:"explanation"`
}

func (r rawRecord) shape() recordShape {
	if _, ok := r.index(); ok {
		return shapeIndexed
	}
	if r.Answer != nil {
		return shapeAnswered
	}
	return shapeUnknown
}

// index decodes correctAnswerIndex when it is a JSON number.
func (r rawRecord) index() (float64, bool) {
	raw := bytes.TrimSpace(r.CorrectAnswerIndex)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

// Parse extracts the JSON array embedded in raw provider text and returns the
// questions that survive validation, in their original order. It never fails:
// text without a usable array yields an empty Quiz.
func Parse(raw string) Quiz {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end <= start {
		return Quiz{}
	}

	var records []json.RawMessage
	if err := json.Unmarshal([]byte(raw[start:end+1]), &records); err != nil {
		return Quiz{}
	}

	out := make(Quiz, 0, len(records))
	for _, rec := range records {
		if q, ok := normalize(rec); ok {
			out = append(out, q)
		}
	}
	return out
}

func normalize(data json.RawMessage) (Question, bool) {
	var rec rawRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Question{}, false
	}
	if rec.Question == nil || len(rec.Choices) != ChoiceCount {
		return Question{}, false
	}

	q := Question{
		Question: strings.TrimSpace(*rec.Question),
		Choices:  make([]string, len(rec.Choices)),
	}
	for i, c := range rec.Choices {
		q.Choices[i] = strings.TrimSpace(c)
	}

	switch rec.shape() {
	case shapeIndexed:
		f, _ := rec.index()
		if f != math.Trunc(f) || f < 0 || f >= ChoiceCount {
			return Question{}, false
		}
		q.CorrectAnswerIndex = int(f)
		if rec.Explanation != nil {
			q.Explanation = strings.TrimSpace(*rec.Explanation)
		} else {
			q.Explanation = q.Choices[q.CorrectAnswerIndex]
		}
	case shapeAnswered:
		answer := strings.TrimSpace(*rec.Answer)
		q.CorrectAnswerIndex = indexOf(q.Choices, answer)
		q.Explanation = answer
	default:
		return Question{}, false
	}

	if !q.Valid() {
		return Question{}, false
	}
	return q, true
}

func indexOf(choices []string, s string) int {
	for i, c := range choices {
		if c == s {
			return i
		}
	}
	return -1
}
