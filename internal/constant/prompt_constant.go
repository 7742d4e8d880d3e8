package constant

const (
	// Slots: question
	RouterPrompt = `You route user questions for a research assistant that has a library of research papers loaded.

Handlers:
1. "memory": questions about this conversation itself, previous questions, or how many questions were asked.
2. "vectorstore": questions needing research paper knowledge, especially technical topics (LLMs, deep learning, NLP), research findings or conclusions, specific papers or studies, state-of-the-art methods, technical comparisons or benchmarks.
3. "general": basic questions not needing special context, such as questions about your capabilities, basic facts, non-technical queries or general concepts.

Any question asking about research findings, papers or technical details MUST go to "vectorstore".

Question: %s

Output MUST be valid JSON: {"route": "memory|vectorstore|general", "reason": "short explanation"}`

	// Slots: recent conversation, question
	RewritePrompt = `Rewrite the follow-up question below into one standalone question for searching research papers.

Recent conversation (most recent first):
%s

Follow-up question: "%s"

Rules:
1. Resolve pronouns and references using the conversation
2. Keep it concise and use technical terminology
3. Do not answer the question
4. Do not add facts that are not in the conversation

Return ONLY the rewritten question, nothing else.`

	// Slots: question, excerpt
	GradePrompt = `Rate the relevance of this document excerpt to the question: "%s"

Document content:
%s

Rate from 0 to 1 where:
0: Not relevant at all
0.5: Somewhat relevant
1: Highly relevant

Output MUST be valid JSON: {"score": 0.7, "relevant": true, "reason": "one sentence"}`

	// Slots: kind-specific instruction, conversation log, question
	MemoryPrompt = `You answer questions about the conversation so far.
%s

Conversation log (oldest first):
%s

Question: %s

Answer directly from the log. Do not invent turns that are not in the log.`
)
