package constant

// Fixed user-facing answers. None of these depend on a model call.
const (
	AnswerNoDocuments = "I cannot answer research questions as no documents have been loaded. Please upload some research papers first."

	NoticeNoRelevantDocuments = "I couldn't find anything relevant to this question in the loaded documents, so this answer is based on general knowledge."

	AnswerUnavailable = "Sorry, I couldn't generate an answer right now because the language model service is unavailable. Please try again in a moment."

	AnswerTimeout = "Sorry, answering this question took too long and was stopped. Please try again or ask a narrower question."

	AnswerInternalError = "Sorry, something went wrong while answering your question. Please try again."

	NoticeDegradedRetrieval = "Keyword search only: semantic search was unavailable for this question."

	MemoryNoHistory = "We haven't talked yet in this conversation, so there are no previous questions to recall."
)
