package models

// PromptID identifies one of the supported essay prompts.
type PromptID string

const (
	PromptIdentity  PromptID = "identity"
	PromptChallenge PromptID = "challenge"
	PromptBelief    PromptID = "belief"
	PromptChoice    PromptID = "choice"
)

// EssayPrompt describes an essay prompt a student can brainstorm for.
type EssayPrompt struct {
	ID          PromptID `json:"id"`
	Title       string   `json:"title"`
	FullText    string   `json:"fullText"`
	Description string   `json:"description"`
	BestFor     string   `json:"bestFor"`
}

var essayPrompts = []EssayPrompt{
	{
		ID:          PromptIdentity,
		Title:       "Background, Identity, Interest, or Talent",
		FullText:    "Some students have a background, identity, interest, or talent that is so meaningful they believe their application would be incomplete without it. If this sounds like you, then please share your story.",
		Description: "Share something central to who you are",
		BestFor:     "Stories about who you are at your core: your culture, passions, or unique perspectives",
	},
	{
		ID:          PromptChallenge,
		Title:       "Challenge, Setback, or Failure",
		FullText:    "The lessons we take from obstacles we encounter can be fundamental to later success. Recount a time when you faced a challenge, setback, or failure. How did it affect you, and what did you learn from the experience?",
		Description: "Describe overcoming a difficulty",
		BestFor:     "Stories about overcoming difficulty, learning from mistakes, or personal growth",
	},
	{
		ID:          PromptBelief,
		Title:       "Questioning or Challenging a Belief",
		FullText:    "Reflect on a time when you questioned or challenged a belief or idea. What prompted your thinking? What was the outcome?",
		Description: "Explore changing your perspective",
		BestFor:     "Stories about intellectual curiosity, changing your mind, or standing up for what you believe",
	},
	{
		ID:          PromptChoice,
		Title:       "Topic of Your Choice",
		FullText:    "Share an essay on any topic of your choice. It can be one you've already written, one that responds to a different prompt, or one of your own design.",
		Description: "Write about anything meaningful to you",
		BestFor:     "Unique stories that don't fit other prompts",
	},
}

// EssayPrompts returns the prompt catalog in display order.
func EssayPrompts() []EssayPrompt {
	out := make([]EssayPrompt, len(essayPrompts))
	copy(out, essayPrompts)
	return out
}

// LookupPrompt finds a prompt by id.
func LookupPrompt(id PromptID) (EssayPrompt, bool) {
	for _, p := range essayPrompts {
		if p.ID == id {
			return p, true
		}
	}
	return EssayPrompt{}, false
}
