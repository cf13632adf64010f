package models

const (
	ContextSeparator  = "\n\n"
	SentenceSeparator = ". "
	ThinkTag          = `(?s)<think>.*?</think>`

	FunctionExecuteSQL     = "execute_sql_query"
	FunctionStaticResponse = "get_static_response"

	// payload keys in the vector store
	PayloadDocumentID = "document_id"
	PayloadChunkIndex = "chunk_index"

	NotInDocumentReply = "Sorry, this question is not related to the uploaded document or the information is not available in the document."
	NoDataReply        = "No data found matching your query."
)

var (
	// arguments: context, question
	AnswerPromptTemplate = `You are a helpful assistant that answers questions STRICTLY based on the provided document context.

IMPORTANT RULES:
1. Answer ONLY based on the information provided in the Context below
2. Do NOT use any external knowledge or previous conversation history
3. If the question cannot be answered from the provided context, respond with: "` + NotInDocumentReply + `"
4. Be specific and quote relevant parts from the context when possible
5. Do not make assumptions or add information not present in the context

Context from the uploaded document:
"""
%s
"""

Question: %s

Answer based solely on the above context:`

	RoutingInstruction = `
You are a data assistant. Your task is to analyze the user query and metadata of the uploaded table and decide:
- Whether the query requires SQL or just a static response.
- Keep it as case insensitive, dont always expect the case sensitive values for the column names.
- If SQL, generate a SQL query based on the metadata.
- If NOT, respond directly with a static answer (without querying anything).
Output format:
{
  "function_call": {
    "name": "execute_sql_query" or "get_static_response",
    "arguments": {
      "query": "<SQL query or static response>"
    }
  }
}
Only use column names and table name from metadata. Don't assume extra fields.
`

	// arguments: instruction, metadata json, question
	RoutingPromptTemplate = "%s\n\nTable Metadata:\n%s\n\nUser Query: %s"

	// arguments: question, sql, result json
	FormatResultPromptTemplate = `
You are a data assistant. Convert the SQL query result into a natural, conversational sentence.

User's Original Question: "%s"
SQL Query Executed: %s
Query Result: %s

Instructions:
- Write a clear, natural sentence that answers the user's question
- Use the actual values from the result
- Make it conversational and easy to understand
- If it's a count, say "The total number of rows is X"
- If it's a sum, say "The total sum of [column] is X"
- If it's an average, say "The average [column] is X"
- If it's multiple records, summarize appropriately
- Don't include technical SQL terms
- Just provide the natural language answer, nothing else

Answer:`
)
