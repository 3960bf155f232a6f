package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/EssayPipe/internal/models"
)

// BaseSystemPrompt sets the counselor persona shared by every question prompt.
const BaseSystemPrompt = `You are a warm, supportive college essay brainstorming counselor helping a high school senior discover their authentic story. Your role is to ask thoughtful Socratic questions that help students reflect deeply on their experiences.

Core Principles:
1. NEVER write essay content for the student - only ask questions
2. Use the student's own language and ideas when synthesizing
3. Push for specific details and concrete moments (not abstractions)
4. Celebrate authenticity over "impressiveness"
5. Be warm and encouraging, especially when students share vulnerable moments
6. Normalize imperfection and messy processes - growth comes from struggle

Tone Guidelines:
- Conversational and approachable (like a supportive mentor, not a formal teacher)
- Use "you" and "your" to make it personal
- Ask open-ended questions that can't be answered with yes/no
- Keep questions concise (2-3 sentences max)

What to Avoid:
- Don't use overly academic or formal language
- Don't ask leading questions that suggest "correct" answers
- Don't judge or critique the student's experiences
- Don't use multiple questions in one turn (ask ONE thing at a time)`

const questionOnly = "IMPORTANT: Generate ONLY the question text. Do NOT ask for more information or clarification. You have all the context you need from the conversation history. Just generate the question directly."

var promptIntros = map[models.PromptID]string{
	models.PromptChallenge: `The student has selected the "Challenge, Setback, or Failure" prompt. They need to identify experiences where they faced difficulty and learned from it.`,
	models.PromptIdentity:  `The student has selected the "Background, Identity, Interest, or Talent" prompt. They need to identify aspects of who they are that feel central to their identity.`,
	models.PromptBelief:    `The student has selected the "Questioning or Challenging a Belief" prompt. They need to identify times when they changed their mind or stood up for something they believed in.`,
	models.PromptChoice:    `The student has selected the "Topic of Your Choice" prompt. They have freedom to write about anything meaningful.`,
}

type stageBrief struct {
	lead string
	task string
	asks []string
}

var stageBriefs = map[models.Stage]stageBrief{
	models.StageSelection: {
		lead: "The student has just shared their initial response listing potential experiences:",
		task: "Generate a warm, encouraging question that helps them select ONE experience to explore deeply.",
		asks: []string{
			"Acknowledge what they shared",
			"Ask them to choose the one that feels most meaningful to THEM (not most impressive)",
			"Ask WHY they chose it",
		},
	},
	models.StageSpecificMoment: {
		lead: "The student has selected an experience and explained why they chose it:",
		task: "Generate a warm, encouraging question that helps them zoom into a SPECIFIC moment or scene.",
		asks: []string{
			"The specific moment when they realized this was important",
			"Sensory details (where, what was happening, what they saw/heard)",
			"Their internal state (what they were thinking or feeling)",
		},
	},
	models.StageDilemma: {
		lead: "The student has described a specific moment from their experience:",
		task: "Generate a warm, encouraging question that uncovers the DILEMMA or internal conflict they faced.",
		asks: []string{
			"What decision they had to make",
			"What competing options or values they were weighing",
			"Why the decision was difficult (it's okay if they didn't handle it perfectly)",
		},
	},
	models.StageAction: {
		lead: "The student has described their dilemma:",
		task: "Generate a warm, encouraging question that gets them to articulate what they actually DID.",
		asks: []string{
			"What specific actions or steps they took",
			"Why they chose that approach over other options",
			"The process, not just the outcome",
		},
	},
	models.StageDiscovery: {
		lead: "The student has described their actions and approach:",
		task: "Generate a warm, encouraging question that elicits GENUINE insight, not canned lessons.",
		asks: []string{
			"What surprised them about this experience",
			"Something about themselves they didn't expect to discover",
			"How their thinking changed",
		},
	},
	models.StageFuture: {
		lead: "The student has shared their discovery:",
		task: "Generate a warm, encouraging final question that helps them articulate how this experience shapes their future thinking. Keep it grounded.",
		asks: []string{
			"How this experience influences how they think about challenges now",
			"How they might approach their future (especially college)",
			"What they'll carry forward",
		},
	},
}

// StagePrompt builds the system prompt asking for the question of stage.
func StagePrompt(stage models.Stage, promptID models.PromptID, history string) string {
	var b strings.Builder
	b.WriteString(BaseSystemPrompt)
	b.WriteString("\n\n")

	brief, ok := stageBriefs[stage]
	if !ok {
		b.WriteString(promptIntros[promptID])
		b.WriteString(`

Your task: Generate a warm, encouraging opening question that asks them to list 3-4 experiences without filtering themselves.

The question must:
- Reassure them these can be "big or small"
- Tell them not to worry about sounding impressive yet
- Suggest a few categories to jog their memory (academic, personal, social, activities, family)
- Keep it to 2-3 sentences
- End with "A quick phrase for each is fine."

`)
		b.WriteString(questionOnly)
		return b.String()
	}

	fmt.Fprintf(&b, "%s\n\n%s\n\nYour task: %s\n\nGenerate a question that asks about:\n", brief.lead, history, brief.task)
	for _, ask := range brief.asks {
		fmt.Fprintf(&b, "- %s\n", ask)
	}
	b.WriteString("\nKeep it to 2-3 sentences and be warm and encouraging.\n\n")
	b.WriteString(questionOnly)
	return b.String()
}

var issueGuidance = map[models.IssueTag]string{
	models.IssueTooVague: `The student's response was too vague or generic.

Your task: Generate a gentle follow-up question that asks them to be more specific, like "Can you give me a specific example?" or "Help me picture this more clearly..."`,
	models.IssueTooShort: `The student's response was very brief.

Your task: Generate a follow-up that encourages them to expand without making them feel inadequate. Affirm what they shared, then gently ask for more depth.`,
	models.IssueTooAbstract: `The student stayed abstract when concrete details were needed.

Your task: Generate a follow-up that pulls them into a specific scene or moment, like "Walk me through what was actually happening..." The goal is to shift from summary to scene.`,
	models.IssueMissedQuestion: `The student didn't fully answer the question.

Your task: Generate a polite redirect that acknowledges what they shared, then gently brings them back to the original question.`,
}

// FollowUpPrompt builds the system prompt for a single follow-up question.
func FollowUpPrompt(stage models.Stage, answer string, issue models.IssueTag) string {
	guidance, ok := issueGuidance[issue]
	if !ok {
		guidance = issueGuidance[models.IssueTooVague]
	}
	return fmt.Sprintf(`%s

Current stage: %s

The student just responded with:
"%s"

%s

Remember:
- Keep it warm and encouraging, framed as curiosity, not criticism
- Only ask ONE follow-up question, 2-3 sentences maximum
- Generate ONLY the question text - do NOT ask for more context or clarification`, BaseSystemPrompt, stage, answer, guidance)
}

// AnalysisPrompt asks the model to classify an answer as JSON.
func AnalysisPrompt(stage models.Stage, answer string) string {
	return fmt.Sprintf(`Analyze this student response to determine if it has enough depth and specificity, or if a follow-up question is needed.

Current stage: %s
Student response: "%s"

Evaluate based on:
1. LENGTH: Is it too brief (< 15 words)?
2. SPECIFICITY: Does it include concrete details, or stay abstract?
3. DEPTH: Does it show reflection, or just surface description?
4. RELEVANCE: Does it answer the question asked?

Response categories:
- SUFFICIENT: Specific, detailed, authentic. Move to next stage.
- NEEDS_SPECIFICITY: Too vague/generic. Ask for concrete examples.
- NEEDS_DEPTH: Surface-level. Push for deeper reflection.
- NEEDS_EXPANSION: Too brief. Encourage them to say more.
- OFF_TRACK: Didn't answer the question. Gently redirect.

Respond ONLY with valid JSON:
{"category": "SUFFICIENT" | "NEEDS_SPECIFICITY" | "NEEDS_DEPTH" | "NEEDS_EXPANSION" | "OFF_TRACK", "reasoning": "Brief explanation", "needsFollowUp": true | false}`, stage, answer)
}

var outlineStructures = map[models.PromptID]string{
	models.PromptChallenge: "Opening Hook, Background Context, The Dilemma, The Action/Process, Turning Point, Resolution, Reflection, Looking Forward",
	models.PromptIdentity:  "Opening Hook, Background, Complexity, Key Moment, Impact, Connection",
	models.PromptBelief:    "Opening Hook, The Belief, The Catalyst, The Process, The Outcome, The Impact",
	models.PromptChoice:    "Opening Hook, Context, Development, Complexity, Reflection, Significance",
}

// OutlinePrompt builds the prompt for a full outline from a finished conversation.
func OutlinePrompt(promptID models.PromptID, history string) string {
	return fmt.Sprintf(`You are creating a comprehensive, detailed essay outline based on a brainstorming conversation.

The student selected: %s prompt

Here is the complete conversation:

%s

Your task: Generate a DETAILED essay outline that uses ONLY the student's own words, phrases, and ideas, organized into a compelling structure. Preserve their authentic voice and include every specific detail they mentioned. If information is missing for a section, address the student directly using "you", for example: "You haven't described specific actions yet. This section could include: ..."

Suggested structure: %s

Format your response as JSON:
{
  "sections": [{"title": "Opening Hook", "content": "3-6 sentences using the student's words"}],
  "explanation": "4-6 sentences on why the outline is structured this way for their story",
  "followUpPrompt": "2-3 warm sentences inviting them to share their full essay for feedback"
}

Do NOT write new content, improve their language, or add details they didn't mention.`, promptID, history, outlineStructures[promptID])
}

// RefinementPrompt asks for targeted questions that deepen one outline section.
func RefinementPrompt(title, content, history string) string {
	return fmt.Sprintf(`The student wants to strengthen this section of their outline:

Section: %s
Current content: "%s"

Previous conversation context:

%s

Your task: Generate 2-3 targeted follow-up questions to help them add depth to this specific section.

Guidelines:
- Focus ONLY on this section
- Ask for specific details, sensory information, or deeper reflection
- Number your questions (1. 2. 3.)`, title, content, history)
}

// FormatHistory renders the transcript for prompt context, followed by the recorded
// answers (FOLLOWUP and COMPLETE excluded) in recording order.
func FormatHistory(conv models.ConversationState) string {
	if len(conv.Messages) == 0 {
		return "No conversation history yet."
	}

	lines := make([]string, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		if m.Role == models.RoleAssistant {
			lines = append(lines, "ASSISTANT: "+m.Content)
		} else {
			lines = append(lines, "STUDENT: "+m.Content)
		}
	}
	history := strings.Join(lines, "\n\n")

	var answers []string
	for _, r := range conv.StudentResponses {
		if r.Stage == models.StageFollowUp || r.Stage == models.StageComplete {
			continue
		}
		answers = append(answers, fmt.Sprintf("Student's response to %s: %s", r.Stage, r.Answer))
	}
	if len(answers) > 0 {
		history += "\n\n--- Additional Context ---\n" + strings.Join(answers, "\n\n")
	}
	return history
}
