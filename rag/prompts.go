package rag

import (
	"fmt"
	"strings"

	"docqa/vectorstore"
)

const answerSystemPrompt = "You are a precise document assistant that answers questions only from provided context."

const summarySystemPrompt = "You are a professional document summarization assistant. Always use proper markdown formatting with headings, bold text, and bullet points for clarity."

const answerPromptTemplate = `You are a professional document assistant. Provide clear, well-structured answers based on the provided context.

FORMATTING RULES:
1. Use proper markdown formatting:
   - Use **bold** for important terms and key points
   - Use numbered lists (1., 2., 3.) or bullet points (- ) for multiple items
   - Use clear paragraph breaks for readability
   - Use headings (##) only when needed for long responses
2. Structure your response professionally with clear paragraphs
3. Make the response easy to read and scan

CONTENT RULES:
1. Answer ONLY using information from the context below
2. If the context doesn't contain the answer, say "I don't have enough information in the provided documents to answer this question."
3. DO NOT use external knowledge or make assumptions
4. Cite sources using [Source X] notation
5. Be concise and factual

CONTEXT:
%s

USER QUESTION: %s

Provide a well-formatted, professional answer:`

const summaryPromptTemplate = `Provide a comprehensive, professionally formatted summary of the following document.

FORMATTING REQUIREMENTS:
- Use clear headings with ## for main sections
- Use **bold** for key terms and important concepts
- Use bullet points (-) or numbered lists (1., 2., 3.) for multiple items
- Write in clear, well-structured paragraphs
- Make it easy to read and professional

Document: %s

Content:
%s

Please provide a well-structured summary covering:

## Overview
Brief description of the document's main purpose and topic

## Key Points
Main findings, concepts, or information (use bullet points)

## Important Details
Any critical details, conclusions, or recommendations

Provide the summary in markdown format:`

func buildAnswerPrompt(question string, results []vectorstore.SearchResult) string {
	var sb strings.Builder
	for i, result := range results {
		meta := result.Metadata
		sb.WriteString(fmt.Sprintf("[Source %d] Document: %s, Page: %d\n%s\n\n", i+1, meta.Filename, meta.PageNumber, result.Text))
	}
	return fmt.Sprintf(answerPromptTemplate, sb.String(), question)
}

func buildSummaryPrompt(filename, content string) string {
	return fmt.Sprintf(summaryPromptTemplate, filename, content)
}
