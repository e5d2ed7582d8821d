// Package tooltext renders retrieval results as the plain-text tool response
// consumed by agent callers.
package tooltext

import (
	"fmt"
	"strconv"
	"strings"

	"mathrag/internal/service"
)

const (
	SuccessBanner = "RAG RETRIEVAL SUCCESSFUL"
	FailureBanner = "RAG RETRIEVAL FAILED"
)

var divider = strings.Repeat("━", 60)

// Render formats result. The output depends only on result.
func Render(result service.Result) string {
	if !result.RAGUsed {
		return renderFailure(result.Message)
	}
	var b strings.Builder
	b.WriteString("\n" + SuccessBanner + "\n" + divider + "\n\n")
	fmt.Fprintf(&b, "Status: %s\n", result.Message)
	fmt.Fprintf(&b, "Chunks Retrieved: %d\n\n", result.ChunksFound)
	b.WriteString("RETRIEVED CONTEXT FROM KNOWLEDGE BASE:\n")
	b.WriteString(result.Context)
	b.WriteString("\n\nSOURCES:\n")
	for _, src := range result.Sources {
		fmt.Fprintf(&b, "\n[%d] %s - Page %d (Relevance: %s)", src.Number, src.FileName, src.Page, formatScore(src.Relevance))
		preview := src.Preview
		if src.Truncated {
			preview += "..."
		}
		fmt.Fprintf(&b, "\n    Preview: %s\n", preview)
	}
	b.WriteString("\n" + divider + "\n\n")
	b.WriteString("IMPORTANT: You MUST base your answer on the context above from the knowledge base.\n")
	b.WriteString("Do NOT use general LLM knowledge. Cite the sources in your response.\n")
	return b.String()
}

func renderFailure(message string) string {
	var b strings.Builder
	b.WriteString("\n" + FailureBanner + "\n" + divider + "\n\n")
	fmt.Fprintf(&b, "Status: %s\n", message)
	b.WriteString("Chunks Retrieved: 0\n\n")
	b.WriteString("Since no context was retrieved from the knowledge base, you may use\n")
	b.WriteString("general LLM knowledge to answer this question. However, clearly state that\n")
	b.WriteString("you are using LLM knowledge and not the knowledge base.\n")
	b.WriteString(divider + "\n")
	return b.String()
}

// formatScore prints the shortest decimal form, so 0.5 renders as "0.5".
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
