package prompt

import (
	"fmt"
	"strings"

	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/store"
)

// Path names which kind of answer a prompt asks for
type Path string

const (
	PathGrounded Path = "grounded"
	PathGeneral  Path = "general"
	PathMemory   Path = "memory"
)

// Revision carries the rejected draft and why it was rejected
type Revision struct {
	Draft    string
	Feedback []string
}

// AnswerBuilder builds the final user message for answer generation
type AnswerBuilder struct {
	path     Path
	question string
	excerpts []store.GradedCandidate
	notice   string
	revision *Revision
}

func NewAnswerBuilder(path Path, question string) *AnswerBuilder {
	return &AnswerBuilder{path: path, question: question}
}

// WithExcerpts attaches graded document excerpts
func (b *AnswerBuilder) WithExcerpts(excerpts []store.GradedCandidate) *AnswerBuilder {
	b.excerpts = excerpts
	return b
}

// WithNotice tells the model about a condition of this answer, e.g. no relevant documents
func (b *AnswerBuilder) WithNotice(notice string) *AnswerBuilder {
	b.notice = notice
	return b
}

func (b *AnswerBuilder) WithRevision(r *Revision) *AnswerBuilder {
	b.revision = r
	return b
}

func (b *AnswerBuilder) Build() string {
	var prompt strings.Builder

	if b.path == PathGrounded {
		b.writeReferenceMaterial(&prompt)
	}
	b.writeTask(&prompt)
	b.writeGuidelines(&prompt)
	b.writeRevision(&prompt)
	b.writeUserQuestion(&prompt)

	return prompt.String()
}

func (b *AnswerBuilder) writeReferenceMaterial(prompt *strings.Builder) {
	prompt.WriteString("<reference_material>\n")
	for _, e := range b.excerpts {
		prompt.WriteString(fmt.Sprintf("--- FROM: %s (%s, relevance: %.2f) ---\n", e.Source, e.Chunk.Locator, e.Grade))
		prompt.WriteString(e.Chunk.Text)
		prompt.WriteString("\n--- END ---\n")
	}
	prompt.WriteString("</reference_material>\n\n")
}

func (b *AnswerBuilder) writeTask(prompt *strings.Builder) {
	prompt.WriteString("<task>\n")
	switch b.path {
	case PathGrounded:
		prompt.WriteString("Answer the question using ONLY the research paper excerpts in the reference material.\n")
	case PathMemory:
		prompt.WriteString("Answer the question about this conversation using only the conversation history above.\n")
	default:
		prompt.WriteString("Answer the question from your general knowledge.\n")
	}
	if b.notice != "" {
		prompt.WriteString("Note: ")
		prompt.WriteString(b.notice)
		prompt.WriteString("\n")
	}
	prompt.WriteString("</task>\n\n")
}

func (b *AnswerBuilder) writeGuidelines(prompt *strings.Builder) {
	prompt.WriteString("<guidelines>\n")
	switch b.path {
	case PathGrounded:
		prompt.WriteString("1. Only use information from the provided excerpts\n")
		prompt.WriteString("2. Cite the paper a claim comes from by its file name\n")
		prompt.WriteString("3. If the excerpts are incomplete or unclear, say so explicitly\n")
		prompt.WriteString("4. Focus on key findings and conclusions\n")
		prompt.WriteString("5. Be concise but thorough\n")
	default:
		prompt.WriteString("1. Answer directly and address every part of the question\n")
		prompt.WriteString("2. Be concise and accurate\n")
		prompt.WriteString("3. If you are unsure, say so\n")
	}
	prompt.WriteString("</guidelines>\n\n")
}

func (b *AnswerBuilder) writeRevision(prompt *strings.Builder) {
	if b.revision == nil {
		return
	}
	prompt.WriteString("<previous_draft>\n")
	prompt.WriteString(b.revision.Draft)
	prompt.WriteString("\n</previous_draft>\n\n")
	prompt.WriteString("<review>\nThe previous draft was rejected:\n")
	for _, f := range b.revision.Feedback {
		prompt.WriteString("- ")
		prompt.WriteString(f)
		prompt.WriteString("\n")
	}
	prompt.WriteString("Write a new answer that fixes these problems.\n</review>\n\n")
}

func (b *AnswerBuilder) writeUserQuestion(prompt *strings.Builder) {
	prompt.WriteString("<user_question>\n")
	prompt.WriteString(b.question)
	prompt.WriteString("\n</user_question>\n\nAnswer:")
}

// HistoryMessages converts turns, oldest first, into chat messages
func HistoryMessages(turns []store.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == store.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	return msgs
}

// Transcript renders turns one per line, in the order given
func Transcript(turns []store.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		speaker := "User"
		if t.Role == store.RoleAssistant {
			speaker = "Assistant"
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", speaker, t.Content))
	}
	return strings.TrimSpace(sb.String())
}
