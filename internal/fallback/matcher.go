package fallback

import (
	"context"
	"math"
	"sort"
	"strings"

	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/internal/textutil"
	"rag-chatbot-go/pkg/log"
)

const (
	maxSentencesPerDocument = 5
	baseRelevance           = 0.5
	relevancePerKeyword     = 0.1
	maxRelevance            = 0.9
)

// DocumentSource 提供兜底检索所需的文档全集。
type DocumentSource interface {
	FindAll(ctx context.Context) ([]*model.Document, error)
	FindByOrganization(ctx context.Context, organizationID uint) ([]*model.Document, error)
}

// Matcher 在文档原文上做子串匹配，阿拉伯语查询先经映射表转换为英文关键词。
type Matcher struct {
	docs  DocumentSource
	terms *TermTable
}

// NewMatcher 创建 Matcher。
func NewMatcher(docs DocumentSource, terms *TermTable) *Matcher {
	return &Matcher{docs: docs, terms: terms}
}

// Keywords 返回查询对应的英文关键词，去重并保持首次出现的顺序。
func (m *Matcher) Keywords(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if !textutil.IsArabic(query) {
		return []string{strings.ToLower(query)}
	}

	var kw keywordSet
	for _, token := range textutil.Words(query) {
		kw.add(m.terms.Words[token]...)
	}
	for _, phrase := range m.terms.phraseOrder {
		if strings.Contains(query, phrase) {
			kw.add(m.terms.Phrases[phrase]...)
		}
	}
	if len(kw.list) == 0 {
		kw.add(m.terms.GenericKeywords...)
	}
	kw.add(m.terms.AnchorKeywords...)
	return kw.list
}

// Search 对组织可见的全部文档执行关键词检索，结果按相关度降序，同分保持注册表顺序。
func (m *Matcher) Search(ctx context.Context, query string, organizationID *uint) []model.DocumentResult {
	keywords := m.Keywords(query)
	if len(keywords) == 0 {
		return nil
	}

	var (
		docs []*model.Document
		err  error
	)
	if organizationID != nil {
		docs, err = m.docs.FindByOrganization(ctx, *organizationID)
	} else {
		docs, err = m.docs.FindAll(ctx)
	}
	if err != nil {
		log.Errorf("[FallbackMatcher] 加载文档失败: %v", err)
		return nil
	}

	results := make([]model.DocumentResult, 0)
	for _, doc := range docs {
		if doc.ExtractedText == "" {
			continue
		}
		found := foundKeywords(strings.ToLower(doc.ExtractedText), keywords)
		if len(found) == 0 {
			continue
		}
		sentences := m.retainSentences(doc.ExtractedText, found)
		if len(sentences) == 0 {
			continue
		}
		results = append(results, model.DocumentResult{
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			Chunks:     sentences,
			Relevance:  math.Min(maxRelevance, baseRelevance+relevancePerKeyword*float64(len(found))),
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })
	log.Infof("[FallbackMatcher] 查询 '%s' 使用关键词 %v，命中 %d 个文档", query, keywords, len(results))
	return results
}

func (m *Matcher) retainSentences(text string, found []string) []string {
	var kept []string
	for _, s := range textutil.Sentences(text) {
		lower := strings.ToLower(s)
		if containsAny(lower, found) || textutil.ContainsDigit(s) || containsAny(lower, m.terms.SentenceTerms) {
			kept = append(kept, s)
			if len(kept) == maxSentencesPerDocument {
				break
			}
		}
	}
	return kept
}

func foundKeywords(lowerText string, keywords []string) []string {
	var found []string
	for _, k := range keywords {
		if strings.Contains(lowerText, k) {
			found = append(found, k)
		}
	}
	return found
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

type keywordSet struct {
	seen map[string]struct{}
	list []string
}

func (k *keywordSet) add(words ...string) {
	if k.seen == nil {
		k.seen = make(map[string]struct{})
	}
	for _, w := range words {
		if _, ok := k.seen[w]; ok {
			continue
		}
		k.seen[w] = struct{}{}
		k.list = append(k.list, w)
	}
}
