package generator

import (
	"fmt"

	"github.com/p-n-ai/buzzle/internal/experience"
)

// BuildPrompt returns the generation prompt for mode. Any mode other than
// game gets the lesson prompt.
func BuildPrompt(mode experience.Mode, character, tone, subject string, level int) string {
	if mode == experience.ModeGame {
		return fmt.Sprintf(`You are %[1]s, a playful and enthusiastic guide.
Create a fun and educational game about %[2]s at level %[3]d.
Use a %[4]s tone.

Start with a short, engaging intro (1-2 sentences) where %[1]s welcomes the player.
Include the character's name and mention the topic.

Then, create 5 diverse and creative question-answer pairs with different correct answers.
If an answer is numeric, include both digit and word form like {5, five}.
If several answers are acceptable, list them separated by commas.

Also include:
1. "outro_success": message if the player gets 3 or more correct (congratulatory, says next round will be harder)
2. "outro_retry": message if the player gets 0-2 correct (encouraging, says next round will be easier)

Respond with JSON only, formatted like this:
{
  "title": "Game Title",
  "intro": "Intro message",
  "outro_success": "Success outro message",
  "outro_retry": "Retry outro message",
  "questions": [
    {
      "question": "What is 2 + 3?",
      "answer": "{5, five}",
      "correct_response": "That's right!",
      "wrong_response": "Oops! The correct answer is 5."
    }
  ]
}`, character, subject, level, tone)
	}

	return fmt.Sprintf(`You are %s.
Create a short (under 80 words) educational explanation about %s at level %d.
Use a %s tone.

Respond with JSON only, formatted like this:
{
  "title": "Lesson title",
  "content": "Short explanation"
}`, character, subject, level, tone)
}
