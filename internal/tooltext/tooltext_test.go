package tooltext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"mathrag/internal/service"
)

func TestRender_Success(t *testing.T) {
	result := service.Result{
		Context:     "\nSOURCE 1 | Page 3 | Relevance: 0.81\nA set is a collection.\n",
		RAGUsed:     true,
		Status:      service.StatusRetrieved,
		Message:     "Successfully retrieved 2 chunks from knowledge base",
		ChunksFound: 2,
		Sources: []service.Source{
			{Number: 1, FileName: "DiscreteMath.pdf", Page: 3, Relevance: 0.812, Preview: "A set is a collection.", Truncated: false},
			{Number: 2, FileName: "DiscreteMath.pdf", Page: 4, Relevance: 0.5, Preview: "Sets may be infinite", Truncated: true},
		},
	}

	out := Render(result)

	assert.Contains(t, out, SuccessBanner)
	assert.NotContains(t, out, FailureBanner)
	assert.Contains(t, out, "Chunks Retrieved: 2")
	assert.Contains(t, out, "RETRIEVED CONTEXT FROM KNOWLEDGE BASE:\n"+result.Context)
	assert.Contains(t, out, "[1] DiscreteMath.pdf - Page 3 (Relevance: 0.812)\n    Preview: A set is a collection.\n")
	assert.Contains(t, out, "[2] DiscreteMath.pdf - Page 4 (Relevance: 0.5)\n    Preview: Sets may be infinite...\n")
	assert.Contains(t, out, "Cite the sources in your response.")
	assert.Less(t, strings.Index(out, "[1]"), strings.Index(out, "[2]"))
}

func TestRender_Failure(t *testing.T) {
	out := Render(service.Result{
		Status:  service.StatusUnavailable,
		Message: "Calculus knowledge base is not yet implemented",
	})

	assert.Contains(t, out, FailureBanner)
	assert.NotContains(t, out, SuccessBanner)
	assert.Contains(t, out, "Status: Calculus knowledge base is not yet implemented\n")
	assert.Contains(t, out, "Chunks Retrieved: 0\n")
	assert.Contains(t, out, "you may use\ngeneral LLM knowledge")
	assert.Contains(t, out, "clearly state that\nyou are using LLM knowledge")
	assert.NotContains(t, out, "SOURCES:")
}

func TestRender_IsDeterministic(t *testing.T) {
	result := service.Result{RAGUsed: true, ChunksFound: 1, Message: "ok",
		Sources: []service.Source{{Number: 1, FileName: "f.pdf", Page: 1, Relevance: 0.25, Preview: "p"}}}
	assert.Equal(t, Render(result), Render(result))
}
