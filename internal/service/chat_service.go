package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/pkg/llm"
	"rag-chatbot-go/pkg/log"
)

// groundingDocuments 是拼入提示词的文档数量上限。
const groundingDocuments = 2

const notConfiguredAnswer = "The AI service is not configured, so no generated answer is available. Configure llm.api_key to enable AI responses."

// ChatService 定义了问答操作的接口。
type ChatService interface {
	// Answer 检索并生成完整回答。
	Answer(ctx context.Context, query string, organizationID *uint) *model.ChatAnswer
	// StreamAnswer 把回答分块写入 writer，返回的 ChatAnswer 包含完整回答与引用来源。
	StreamAnswer(ctx context.Context, query string, organizationID *uint, writer llm.MessageWriter) *model.ChatAnswer
}

type chatService struct {
	retrieval RetrievalService
	llmClient llm.Client
}

// NewChatService 创建一个新的 ChatService 实例。llmClient 为 nil 表示未配置大模型。
func NewChatService(retrieval RetrievalService, llmClient llm.Client) ChatService {
	return &chatService{retrieval: retrieval, llmClient: llmClient}
}

func (s *chatService) Answer(ctx context.Context, query string, organizationID *uint) *model.ChatAnswer {
	return s.StreamAnswer(ctx, query, organizationID, nil)
}

func (s *chatService) StreamAnswer(ctx context.Context, query string, organizationID *uint, writer llm.MessageWriter) *model.ChatAnswer {
	results := s.retrieval.Retrieve(ctx, query, organizationID)
	log.Infof("[ChatService] 检索返回 %d 个文档", len(results))

	grounding := results
	if len(grounding) > groundingDocuments {
		grounding = grounding[:groundingDocuments]
	}
	sources := make([]model.Source, 0, len(grounding))
	for _, r := range grounding {
		sources = append(sources, model.Source{DocumentID: r.DocumentID, Filename: r.Filename, Relevance: r.Relevance})
	}

	answer := &model.ChatAnswer{
		Sources:     sources,
		Confidence:  Confidence(results),
		ChunksFound: len(results),
	}

	if s.llmClient == nil {
		answer.Response = notConfiguredAnswer
		writeText(writer, answer.Response)
		return answer
	}

	collector := &llm.Collector{}
	out := llm.MessageWriter(collector)
	if writer != nil {
		out = teeWriter{collector, writer}
	}
	messages := []llm.Message{
		{Role: "system", Content: buildSystemMessage(grounding)},
		{Role: "user", Content: query},
	}
	if err := s.llmClient.StreamChatMessages(ctx, messages, nil, out); err != nil {
		log.Errorf("[ChatService] 调用大模型失败: %v", err)
		answer.Response = fmt.Sprintf("AI service temporarily unavailable: %v", err)
		writeText(writer, answer.Response)
		return answer
	}
	answer.Response = strings.TrimSpace(collector.String())
	return answer
}

// buildSystemMessage 拼接回答规则与检索到的文档片段。
func buildSystemMessage(grounding []model.DocumentResult) string {
	var b strings.Builder
	b.WriteString("You are a helpful RAG chatbot assistant. Answer the user's question based on the provided context from their uploaded documents.\n")
	if len(grounding) == 0 {
		b.WriteString("\nNo relevant information found in uploaded documents.\n")
	} else {
		b.WriteString("\nRelevant information from uploaded documents:\n")
		for _, r := range grounding {
			fmt.Fprintf(&b, "\nFrom %s:\n", r.Filename)
			for _, c := range r.Chunks {
				if c = strings.TrimSpace(c); c != "" {
					fmt.Fprintf(&b, "- %s\n", c)
				}
			}
		}
	}
	b.WriteString(`
Instructions:
- If the document context contains relevant information, use it to answer the question
- If no relevant information is found in the documents, provide a general helpful response
- Be specific and reference the information from the documents when applicable
- If you mention information from documents, indicate which document it came from
`)
	return b.String()
}

type teeWriter struct {
	primary   llm.MessageWriter
	secondary llm.MessageWriter
}

func (t teeWriter) WriteMessage(messageType int, data []byte) error {
	if err := t.primary.WriteMessage(messageType, data); err != nil {
		return err
	}
	return t.secondary.WriteMessage(messageType, data)
}

func writeText(w llm.MessageWriter, text string) {
	if w == nil {
		return
	}
	if err := w.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		log.Warnf("[ChatService] 写入回答失败: %v", err)
	}
}
