package pipeline

const evaluatorSystemPrompt = `You judge which evidence sources can answer a research question.
The sources are RAG (indexed documents), Memory (earlier turns of this conversation), Web (live search) and ArXiv (academic papers).
Ignore sources whose status is ERROR or whose content does not bear on the question.
Reply with JSON only.`

const evaluatorPromptTemplate = `QUESTION:
%s

SOURCES:
%s

List the relevant sources in relevant_sources using the names RAG, Memory, Web and ArXiv.
Copy only the relevant parts of each relevant source into filtered_context, keyed by the same name.
Give each source a relevance score between 0 and 1 in relevance_scores.
Explain the choice in reasoning.`

const synthesizerSystemPrompt = `You write the final answer of a research assistant.
Use only the filtered context you are given. Do not add outside knowledge.
Mention the documents, pages or URLs the answer rests on.
If the context does not answer the question, say what is missing instead of guessing.`

const synthesizerPromptTemplate = `QUESTION:
%s

FILTERED CONTEXT:
%s

EVALUATOR NOTES:
%s

Write a concise answer in plain prose.`
