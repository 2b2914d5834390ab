package generation

import "fmt"

// SystemPrompt carries the grounding policy.
const SystemPrompt = `You are a research assistant. Every answer must be grounded in the supplied context.
Rules:
1. Use only the CONTEXT below and any SOURCE items it lists.
2. If the CONTEXT cannot answer the QUESTION, set status to INSUFFICIENT_CONTEXT, leave answer empty and list what is missing.
3. Otherwise answer briefly, cite each claim with a document/page or URL locator and give a confidence between 0 and 1.
4. Do not add facts from background knowledge.
5. Reply with JSON that matches the response schema exactly.`

const promptTemplate = `CONTEXT:
%s
---------------------
QUESTION:
%s

Decide whether the CONTEXT is enough to answer the QUESTION.
If it is, answer with citations and a confidence score.
If it is not, do not answer: return status INSUFFICIENT_CONTEXT and the missing information.`

// RenderPrompt fills the user prompt.
func RenderPrompt(context, query string) string {
	return fmt.Sprintf(promptTemplate, context, query)
}
