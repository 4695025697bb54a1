package llm

import (
	"github.com/tmc/langchaingo/prompts"
)

var (
	ragPrompt = prompts.NewPromptTemplate(`Strictly use the following pieces of context/images to answer the question at the end.
Do not assume or add any further information.
If you don't know the answer, don't try to make up an answer.
Respond with only the exact answer; do not include any extra words, sentences, or symbols.

{{.context}}

Question: {{.question}}
`, []string{"context", "question"})

	tableSummaryPrompt = prompts.NewPromptTemplate(`For the given table, generate a summary.
The summary will be used to answer questions asked about the source document.
Keep the summary precise and relevant, and do not add anything that is not in the table:

{{.source_text}}
`, []string{"source_text"})

	imageDescriptionPrompt = prompts.NewPromptTemplate(`For the given image, which is a part of a PDF, extract every visible text element on the image and provide a detailed text description. Ensure that every bit of information is included verbatim, without summarization. Separate the content into relevant sections, such as headers, dates, various factual details, terms, and specific instructions.

Output should be a JSON object in the following format:
{
    "extracted_text": "Complete extracted text from the image as visible, including all details.",
    "image_description": "Detailed description including all elements from the extracted text. Clearly categorize information into sections, ensuring no details are missed."
}
Ensure no information is omitted or generalized in the output.
`, nil)
)

// RAGPrompt renders the shared question-answering prompt. Image mode passes
// an empty context and attaches the page images instead.
func RAGPrompt(context, question string) (string, error) {
	return ragPrompt.Format(map[string]any{
		"context":  context,
		"question": question,
	})
}

// TableSummaryPrompt asks for a natural-language summary of a serialized table.
func TableSummaryPrompt(serialized string) (string, error) {
	return tableSummaryPrompt.Format(map[string]any{"source_text": serialized})
}

// ImageDescriptionPrompt asks for the visible text and a description of one image.
func ImageDescriptionPrompt() (string, error) {
	return imageDescriptionPrompt.Format(map[string]any{})
}
