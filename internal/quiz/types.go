package quiz

import "fmt"

// Difficulty of generated questions.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(s); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// Mode says who triggered a generation.
type Mode string

const (
	// ModeManual is user-triggered and may be served from cache.
	ModeManual Mode = "Manual"
	// ModeAuto is the scheduled daily generation; it never reads the cache.
	ModeAuto Mode = "Auto"
)

// Tier is the subscription level selecting the access credential.
type Tier string

const (
	TierNormal   Tier = "normal"
	TierAdvanced Tier = "advanced"
	TierPro      Tier = "pro"
)

var Tiers = []Tier{TierNormal, TierAdvanced, TierPro}

func ParseTier(s string) (Tier, error) {
	switch t := Tier(s); t {
	case TierNormal, TierAdvanced, TierPro:
		return t, nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// ChoiceCount is the number of options every question carries.
const ChoiceCount = 4

// Question is a validated multiple-choice question.
type Question struct {
	Question           string   `json:"question"`
	Choices            []string `json:"choices"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
}

// Valid reports whether q satisfies the question invariants.
func (q Question) Valid() bool {
	return q.Question != "" &&
		len(q.Choices) == ChoiceCount &&
		q.CorrectAnswerIndex >= 0 && q.CorrectAnswerIndex < ChoiceCount
}

// Quiz is an ordered list of questions; order is presentation order.
type Quiz []Question

// GenerationRequest holds the inputs for one quiz generation.
type GenerationRequest struct {
	Content           string
	NumberOfQuestions int
	Difficulty        Difficulty
	Mode              Mode
	Tier              Tier
}

// CacheKey excludes tier and mode.
func (r GenerationRequest) CacheKey() string {
	return CacheKeyPrefix + ContentHash(r.Content, r.NumberOfQuestions, string(r.Difficulty))
}

// HistoryRecord is one completed quiz.
type HistoryRecord struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Score int    `json:"score"`
	Total int    `json:"total"`
	Quiz  Quiz   `json:"quiz"`
}

// StudyMaterial is uploaded content together with the quiz built from it.
type StudyMaterial struct {
	ID         string `json:"id,omitempty"`
	FileName   string `json:"fileName"`
	UploadDate string `json:"uploadDate"`
	Text       string `json:"text"`
	Quiz       Quiz   `json:"quiz"`
}

// CustomQuiz is a quiz assembled by the user.
type CustomQuiz struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	NumberOfQuestions int    `json:"numberOfQuestions"`
	Date              string `json:"date"`
	Questions         Quiz   `json:"questions"`
}
