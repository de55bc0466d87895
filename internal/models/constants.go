package models

const (
	// ContextSeparator joins retrieved chunks into one context block.
	ContextSeparator = "\n\n--\n\n"

	MetadataSource = "source"
	MetadataPage   = "page"
	MetadataRunID  = "run_id"

	// NoAnswerReply is what the model is told to say when the context lacks the answer.
	NoAnswerReply = "I don't know based on the provided information"
)

// PromptTemplate is rendered with langchaingo prompts (Go template syntax).
var PromptTemplate = `
You are an expert assistant. Answer the question **only** using the provided context.
If the answer is not in the context, say **"` + NoAnswerReply + `"**

### **Context:**
{{.context}}

### **Question:**
{{.question}}

### **Answer:**
`
