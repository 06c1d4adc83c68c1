package quiz

import "fmt"

const promptTemplate = `Generate %d %s multiple-choice questions based on the following study material.
Each question must have exactly 4 options and clearly indicate the correct answer index (0-3).

Return the result as a JSON array of objects in the following format and do not include any text outside the JSON:

[
  {
    "question": "Your question here?",
    "choices": ["Option A", "Option B", "Option C", "Option D"],
    "correctAnswerIndex": 1,
    "explanation": "Short explanation of the correct answer"
  }
]

Study Material:
%s
`

// BuildPrompt renders the instruction sent to every provider.
func BuildPrompt(req GenerationRequest) string {
	return fmt.Sprintf(promptTemplate, req.NumberOfQuestions, req.Difficulty, req.Content)
}
